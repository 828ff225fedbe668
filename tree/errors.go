package tree

// Errors returns the ERROR and MISSING nodes under n in document order.
// The contents of an ERROR node are not searched.
func Errors(n Node) []Node {
	var out []Node
	NewCursor(n).Walk(func(c Node, _ string, _ int) bool {
		if c.IsError() || c.IsMissing() {
			out = append(out, c)
			return false
		}
		return c.HasError()
	})
	return out
}
