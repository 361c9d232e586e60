package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"clinicq/queue-engine/internal/models"
	"clinicq/queue-engine/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ticketColumns = `ticket_id, appointment_id, doctor_id, clinic_id, patient_id, status,
	queue_number, daily_number, fast_tracked, fast_track_reason, check_in_time, called_at, completed_at`

// Store persists queue tickets in Postgres. Queue mutations for a doctor's
// day are additionally guarded by an advisory transaction lock so multiple
// engine instances sharing one database stay serialized.
type Store struct {
	pool *pgxpool.Pool
	loc  *time.Location
}

func NewStore(pool *pgxpool.Pool, loc *time.Location) *Store {
	if loc == nil {
		loc = time.UTC
	}
	return &Store{pool: pool, loc: loc}
}

func (s *Store) CreateTicket(ctx context.Context, ticket models.QueueTicket) (models.QueueTicket, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.QueueTicket{}, unavailable(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = lockDoctorDay(ctx, tx, ticket.DoctorID, models.DayOf(ticket.CheckInTime, s.loc)); err != nil {
		return models.QueueTicket{}, err
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO queue_tickets (
			ticket_id, appointment_id, doctor_id, clinic_id, patient_id, status,
			queue_number, daily_number, fast_tracked, fast_track_reason, check_in_time, called_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (appointment_id) DO NOTHING
	`, ticket.TicketID, ticket.AppointmentID, ticket.DoctorID, ticket.ClinicID, ticket.PatientID,
		ticket.Status, ticket.QueueNumber, ticket.DailyNumber, ticket.FastTracked,
		nullIfEmpty(ticket.FastTrackReason), ticket.CheckInTime, ticket.CalledAt, ticket.CompletedAt)
	if err != nil {
		return models.QueueTicket{}, unavailable(err)
	}
	if tag.RowsAffected() == 0 {
		return models.QueueTicket{}, store.ErrDuplicateCheckIn
	}

	if err = tx.Commit(ctx); err != nil {
		return models.QueueTicket{}, unavailable(err)
	}
	return ticket, nil
}

func (s *Store) GetTicket(ctx context.Context, ticketID string) (models.QueueTicket, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM queue_tickets
		WHERE ticket_id = $1
	`, ticketID)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.QueueTicket{}, store.ErrTicketNotFound
		}
		return models.QueueTicket{}, unavailable(err)
	}
	return ticket, nil
}

func (s *Store) FindTicketByAppointment(ctx context.Context, appointmentID string) (models.QueueTicket, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM queue_tickets
		WHERE appointment_id = $1
	`, appointmentID)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.QueueTicket{}, false, nil
		}
		return models.QueueTicket{}, false, unavailable(err)
	}
	return ticket, true, nil
}

func (s *Store) ListDoctorDay(ctx context.Context, doctorID string, day time.Time) ([]models.QueueTicket, error) {
	from, until := dayBounds(day, s.loc)
	rows, err := s.pool.Query(ctx, `
		SELECT `+ticketColumns+`
		FROM queue_tickets
		WHERE doctor_id = $1 AND check_in_time >= $2 AND check_in_time < $3
		ORDER BY check_in_time ASC, ticket_id ASC
	`, doctorID, from, until)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	var tickets []models.QueueTicket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, unavailable(err)
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return tickets, nil
}

func (s *Store) UpdateTickets(ctx context.Context, tickets []models.QueueTicket) error {
	if len(tickets) == 0 {
		return nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return unavailable(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = lockDoctorDay(ctx, tx, tickets[0].DoctorID, models.DayOf(tickets[0].CheckInTime, s.loc)); err != nil {
		return err
	}

	for _, ticket := range tickets {
		var tag pgconn.CommandTag
		tag, err = tx.Exec(ctx, `
			UPDATE queue_tickets
			SET status = $1,
				queue_number = $2,
				fast_tracked = $3,
				fast_track_reason = $4,
				called_at = $5,
				completed_at = $6
			WHERE ticket_id = $7
		`, ticket.Status, ticket.QueueNumber, ticket.FastTracked,
			nullIfEmpty(ticket.FastTrackReason), ticket.CalledAt, ticket.CompletedAt, ticket.TicketID)
		if err != nil {
			return unavailable(err)
		}
		if tag.RowsAffected() == 0 {
			err = store.ErrTicketNotFound
			return err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Store) MaxQueueNumber(ctx context.Context, doctorID string, day time.Time) (int, error) {
	from, until := dayBounds(day, s.loc)
	var max int
	row := s.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(queue_number), 0)
		FROM queue_tickets
		WHERE doctor_id = $1 AND check_in_time >= $2 AND check_in_time < $3
	`, doctorID, from, until)
	if err := row.Scan(&max); err != nil {
		return 0, unavailable(err)
	}
	return max, nil
}

func (s *Store) NextDailyNumber(ctx context.Context, clinicID string, day time.Time) (int, error) {
	var next int
	row := s.pool.QueryRow(ctx, `
		INSERT INTO clinic_daily_sequences (clinic_id, day, next_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (clinic_id, day)
		DO UPDATE SET next_number = clinic_daily_sequences.next_number + 1
		RETURNING next_number
	`, clinicID, models.DayKey(day))
	if err := row.Scan(&next); err != nil {
		return 0, unavailable(err)
	}
	return next, nil
}

func lockDoctorDay(ctx context.Context, tx pgx.Tx, doctorID string, day time.Time) error {
	key := doctorID + "|" + models.DayKey(day)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return unavailable(err)
	}
	return nil
}

func dayBounds(day time.Time, loc *time.Location) (time.Time, time.Time) {
	from := models.DayOf(day, loc)
	return from, from.AddDate(0, 0, 1)
}

func scanTicket(row pgx.Row) (models.QueueTicket, error) {
	var ticket models.QueueTicket
	var reasonNull sql.NullString
	var calledAtNull sql.NullTime
	var completedAtNull sql.NullTime
	if err := row.Scan(&ticket.TicketID, &ticket.AppointmentID, &ticket.DoctorID, &ticket.ClinicID,
		&ticket.PatientID, &ticket.Status, &ticket.QueueNumber, &ticket.DailyNumber,
		&ticket.FastTracked, &reasonNull, &ticket.CheckInTime, &calledAtNull, &completedAtNull); err != nil {
		return models.QueueTicket{}, err
	}
	if reasonNull.Valid {
		ticket.FastTrackReason = reasonNull.String
	}
	ticket.CalledAt = nullTimePtr(calledAtNull)
	ticket.CompletedAt = nullTimePtr(completedAtNull)
	return ticket, nil
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	return &value.Time
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
}
