// Package model turns declarative property definitions into lazily
// resolved, validated record instances.
//
// A [Model] is built from a [Definition] naming its properties. Each call
// to [Model.Create] binds raw data to a fresh [Instance] without resolving
// anything; values are computed the first time they are read and then
// shared by every later or concurrent reader.
//
// # Properties
//
// [NewProperty] is the generic constructor. Its [Config] drives value
// resolution (constant, default, lazy transform, callable raw value, raw
// value) and the validators that run against the result:
//
//	name := model.MustProperty(model.NewProperty(model.TypeText, model.Config{
//	    Required:  true,
//	    MaxLength: model.Int(64),
//	}))
//
// [UniqueID], [Date], [Array], [Object], [Reference] and [Denormalized]
// add coercions on top of it.
//
// # Validation
//
// [Instance.Validate] runs all property and model validators concurrently
// and reports only the keys that failed. Model-level messages are stored
// under [OverallKey].
//
// # Serialization
//
// [Instance.ToObj] flattens an instance into plain [Data]: referenced
// instances collapse to their ids, dates become canonical text.
package model
