// Package orm binds models to datastore adapters.
//
// A Model built with New creates instances that carry "save" and "delete"
// methods, validates before every write and rebuilds instances from the
// records an Adapter returns. Adapters only implement the four required
// operations; bulk writes, counting and create-only saves are picked up
// when the adapter implements the matching optional interface.
//
//	users, err := orm.New(model.Definition{
//		Name: "User",
//		Properties: map[string]*model.Property{
//			"email": model.MustProperty(model.NewProperty(model.TypeEmail, model.Config{
//				Required:   true,
//				Validators: []model.PropertyValidator{orm.Unique("email")},
//			})),
//		},
//	}, memstore.New(memstore.DefaultConfig()), orm.Options{})
//
// Unique and UniqueTogether consult the datastore during validation. They
// are skipped when the ValidationContext sets NoOrmValidation.
package orm
