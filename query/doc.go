// Package query builds storage-independent search expressions.
//
// A query is a flat list of tokens alternating match, link, match, where a
// match is a [PropertyMatch], [DatesBefore], [DatesAfter] or a nested
// [Group]. Adapters translate the compiled [Search] into their own syntax;
// [Threeitize] helps them walk the list as (left, link, right) triplets.
//
//	search, err := query.New().
//	    Property("name", "ada").
//	    And().
//	    Complex(func(b query.Builder) query.Builder {
//	        return b.Property("age", 30, query.WithSymbol(query.Gte)).
//	            Or().
//	            DatesAfter("joined", "2024-01-01")
//	    }).
//	    Take(10).
//	    Compile()
//
// Builders are values: every call returns a new builder. Invalid calls are
// reported by [Builder.Compile] rather than panicking.
package query
