package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/abir2776/extract-message-whatsapp/internal/extract"
	"github.com/abir2776/extract-message-whatsapp/internal/verify"
)

// Contact is one persisted phone+email pair.
type Contact struct {
	ID        int64
	Phone     string
	Email     string
	ChatName  string
	Verified  bool
	CreatedAt time.Time
}

// Verifier decides whether a pair may be persisted. *verify.Client is the
// production implementation.
type Verifier interface {
	Verify(ctx context.Context, phone, email string) (verify.Decision, error)
}

// SaveResult is the outcome of a SaveContact call.
type SaveResult int

const (
	// Saved means a new verified row was inserted.
	Saved SaveResult = iota
	// AlreadyExists means a verified row with this email already exists.
	AlreadyExists
	// Rejected means the input failed validation before any I/O.
	Rejected
)

func (r SaveResult) String() string {
	switch r {
	case Saved:
		return "saved"
	case AlreadyExists:
		return "already_exists"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("SaveResult(%d)", int(r))
	}
}

// SaveContact validates, deduplicates, verifies and persists one pair.
// The existence check and the insert run inside one transaction so a
// concurrent caller cannot slip a duplicate verified email in between.
//
// When the service reports the email as a replacement, prior rows for the
// same phone are demoted to unverified before the insert. Supersession is
// keyed by phone (one verified email per phone, per the service contract)
// while uniqueness is keyed by email; both hold at once.
//
// A verification failure is returned as an error and persists nothing.
func (db *DB) SaveContact(ctx context.Context, phone, email, chatName string) (SaveResult, error) {
	if phone == "" || email == "" {
		return Rejected, nil
	}
	norm, ok := extract.NormalizePhone(phone)
	if !ok || len(norm) < db.minPhoneLen {
		return Rejected, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Rejected, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM contacts WHERE email = ? AND verified = 1`, email,
	).Scan(&existing); err != nil {
		return Rejected, fmt.Errorf("check existing: %w", err)
	}
	if existing > 0 {
		return AlreadyExists, nil
	}

	decision, err := db.verifier.Verify(ctx, norm, email)
	if err != nil {
		return Rejected, fmt.Errorf("verify %q: %w", email, err)
	}
	if !decision.Verified {
		return Rejected, fmt.Errorf("verification declined for %q", email)
	}

	if decision.IsReplacement {
		if _, err := tx.ExecContext(ctx,
			`UPDATE contacts SET verified = 0 WHERE phone = ?`, norm,
		); err != nil {
			return Rejected, fmt.Errorf("demote replaced rows: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO contacts (phone, email, chat_name, verified) VALUES (?, ?, ?, 1)`,
		norm, email, nullable(chatName),
	); err != nil {
		return Rejected, fmt.Errorf("insert contact: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Rejected, fmt.Errorf("commit: %w", err)
	}
	return Saved, nil
}

// ListContacts returns all contacts, most recent first.
func (db *DB) ListContacts(ctx context.Context) ([]Contact, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, phone, email, COALESCE(chat_name, ''), verified, created_at
		FROM contacts
		ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var contacts []Contact
	for rows.Next() {
		var c Contact
		if err := rows.Scan(&c.ID, &c.Phone, &c.Email, &c.ChatName, &c.Verified, &c.CreatedAt); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// Counts returns the total and verified row counts.
func (db *DB) Counts(ctx context.Context) (total, verified int64, err error) {
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(verified), 0) FROM contacts`,
	).Scan(&total, &verified)
	return total, verified, err
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
