package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("queue_entries")

		collection.Fields.Add(
			&core.TextField{Name: "queue_id", Required: true},
			&core.TextField{Name: "customer_id"},
			&core.TextField{Name: "session_id"},
			&core.TextField{Name: "customer_name", Required: true},
			&core.TextField{Name: "contact_handle"},
			&core.NumberField{Name: "party_size", OnlyInt: true},
			&core.TextField{Name: "special_requests"},
			&core.TextField{Name: "platform"},
			&core.NumberField{Name: "position", OnlyInt: true},
			&core.NumberField{Name: "estimated_wait", OnlyInt: true},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				MaxSelect: 1,
				Values: []string{
					"waiting",
					"called",
					"acknowledged",
					"seated",
					"completed",
					"no_show",
					"withdrawn",
					"cancelled",
				},
			},
			&core.TextField{Name: "verification_code"},
			&core.NumberField{Name: "notification_count", OnlyInt: true},
			&core.BoolField{Name: "repeat_exhausted"},
			&core.NumberField{Name: "eta_minutes", OnlyInt: true},
			&core.TextField{Name: "eta_note"},
			&core.DateField{Name: "joined_at", Required: true},
			&core.DateField{Name: "called_at"},
			&core.DateField{Name: "acknowledged_at"},
			&core.DateField{Name: "completed_at"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_entries_queue_status", false, "queue_id, status", "")
		collection.AddIndex("idx_entries_queue_joined", false, "queue_id, joined_at", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("queue_entries")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
