package earthengine

// Expression is an Earth Engine expression graph. Result names the node in
// Values whose value is returned by value:compute.
type Expression struct {
	Result string               `json:"result"`
	Values map[string]ValueNode `json:"values"`
}

// ValueNode is a single node in an expression graph. Exactly one field is set.
type ValueNode struct {
	ConstantValue           any                 `json:"constantValue,omitempty"`
	FunctionInvocationValue *FunctionInvocation `json:"functionInvocationValue,omitempty"`
}

// FunctionInvocation calls a named Earth Engine algorithm.
type FunctionInvocation struct {
	FunctionName string               `json:"functionName"`
	Arguments    map[string]ValueNode `json:"arguments,omitempty"`
}

// NewExpression wraps root as a single-node graph.
func NewExpression(root ValueNode) Expression {
	return Expression{
		Result: "0",
		Values: map[string]ValueNode{"0": root},
	}
}

// Constant builds a literal node.
func Constant(v any) ValueNode {
	return ValueNode{ConstantValue: v}
}

// Invoke builds a function call node.
func Invoke(name string, args map[string]ValueNode) ValueNode {
	return ValueNode{FunctionInvocationValue: &FunctionInvocation{
		FunctionName: name,
		Arguments:    args,
	}}
}
