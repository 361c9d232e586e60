package appointments

import (
	"context"
	"errors"
	"fmt"

	"clinicq/queue-engine/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres reads and updates appointment rows owned by the upstream booking
// system in the shared database.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Get(ctx context.Context, appointmentID string) (Appointment, error) {
	var appointment Appointment
	row := p.pool.QueryRow(ctx, `
		SELECT appointment_id, patient_id, doctor_id, clinic_id, status, start_time
		FROM appointments
		WHERE appointment_id = $1
	`, appointmentID)
	if err := row.Scan(&appointment.AppointmentID, &appointment.PatientID, &appointment.DoctorID,
		&appointment.ClinicID, &appointment.Status, &appointment.StartTime); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Appointment{}, store.ErrAppointmentNotFound
		}
		return Appointment{}, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return appointment, nil
}

func (p *Postgres) SetStatus(ctx context.Context, appointmentID, status string) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE appointments
		SET status = $1
		WHERE appointment_id = $2
	`, status, appointmentID)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrAppointmentNotFound
	}
	return nil
}
