package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("queues")

		collection.Fields.Add(
			&core.TextField{Name: "merchant_id", Required: true},
			&core.TextField{Name: "name", Required: true},
			&core.BoolField{Name: "active"},
			&core.BoolField{Name: "accepting"},
			&core.NumberField{Name: "max_capacity", OnlyInt: true},
			&core.NumberField{Name: "average_service_time", OnlyInt: true},
			&core.BoolField{Name: "auto_notify"},
			&core.NumberField{Name: "notification_interval", OnlyInt: true},
			&core.NumberField{Name: "max_repeats", OnlyInt: true},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_queues_merchant", false, "merchant_id", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("queues")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
