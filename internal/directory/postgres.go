package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"clinicq/queue-engine/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) DoctorName(ctx context.Context, doctorID string) (string, error) {
	var name string
	row := p.pool.QueryRow(ctx, `
		SELECT name
		FROM doctors
		WHERE doctor_id = $1
	`, doctorID)
	if err := row.Scan(&name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return name, nil
}

func (p *Postgres) PatientContact(ctx context.Context, patientID string) (Contact, error) {
	var phoneNull sql.NullString
	var emailNull sql.NullString
	row := p.pool.QueryRow(ctx, `
		SELECT phone, email
		FROM patients
		WHERE patient_id = $1
	`, patientID)
	if err := row.Scan(&phoneNull, &emailNull); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Contact{}, nil
		}
		return Contact{}, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	var contact Contact
	if phoneNull.Valid {
		contact.Phone = phoneNull.String
	}
	if emailNull.Valid {
		contact.Email = emailNull.String
	}
	return contact, nil
}
