package notificationservice

import (
	"context"
	"database/sql"
)

func NewSubscriberModel(db *sql.DB) *SubscriberModel {
	return &SubscriberModel{db: db}
}

func (m *SubscriberModel) ConfirmedEmails(ctx context.Context) ([]string, error) {
	query := `
		SELECT email
		FROM subscribers
		WHERE confirmed = true
		ORDER BY id`

	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails = append(emails, email)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return emails, nil
}
