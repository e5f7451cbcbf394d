// modelcache.go: keyed memoization of model objects.
package cpsolver

// ModelCache memoizes model objects by structural key so that factories
// asked twice for the same expression or constraint return the same
// instance. The solver core only depends on the interface; concrete
// caches live with the modeling layers that need them.
type ModelCache interface {
	// FindExprConstantExpression returns the cached expression for
	// (expr, constant, op), or nil.
	FindExprConstantExpression(expr IntExpr, constant int64, op LiteralOp) IntExpr
	// InsertExprConstantExpression caches result under (expr, constant,
	// op).
	InsertExprConstantExpression(result IntExpr, expr IntExpr, constant int64, op LiteralOp)
	// Clear drops every cached object.
	Clear()
}
