package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/abir2776/extract-message-whatsapp/internal/verify"
)

type stubVerifier struct {
	decision verify.Decision
	err      error
	calls    int
}

func (s *stubVerifier) Verify(_ context.Context, _, _ string) (verify.Decision, error) {
	s.calls++
	return s.decision, s.err
}

func okVerifier() *stubVerifier {
	return &stubVerifier{decision: verify.Decision{Verified: true}}
}

func testDB(t *testing.T, v Verifier, opts ...Option) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path, v, opts...)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t, okVerifier())

	// testDB already ran Migrate; a second run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (init + chat_name)", result.Version)
	}
}

func TestSaveContactAndList(t *testing.T) {
	v := okVerifier()
	db := testDB(t, v)

	res, err := db.SaveContact(context.Background(), "+880 1712-345678", "x@ex.com", "X Chat")
	if err != nil {
		t.Fatal(err)
	}
	if res != Saved {
		t.Fatalf("result = %v, want Saved", res)
	}
	if v.calls != 1 {
		t.Errorf("verifier calls = %d, want 1", v.calls)
	}

	contacts, err := db.ListContacts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(contacts) != 1 {
		t.Fatalf("got %d contacts, want 1", len(contacts))
	}
	c := contacts[0]
	if c.Email != "x@ex.com" || !c.Verified || c.ChatName != "X Chat" {
		t.Errorf("contact = %+v", c)
	}
	if c.Phone != "+880 1712-345678" {
		t.Errorf("phone = %q, want normalized original", c.Phone)
	}
	if c.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
}

func TestSaveContactIdempotent(t *testing.T) {
	v := okVerifier()
	db := testDB(t, v)

	if res, err := db.SaveContact(context.Background(), "+880 1712-345678", "x@ex.com", ""); err != nil || res != Saved {
		t.Fatalf("first save = %v, %v", res, err)
	}
	res, err := db.SaveContact(context.Background(), "+880 1712-345678", "x@ex.com", "")
	if err != nil {
		t.Fatal(err)
	}
	if res != AlreadyExists {
		t.Errorf("second save = %v, want AlreadyExists", res)
	}
	if v.calls != 1 {
		t.Errorf("verifier calls = %d, want 1 (no re-verify of a stored pair)", v.calls)
	}

	contacts, _ := db.ListContacts(context.Background())
	if len(contacts) != 1 {
		t.Errorf("row count = %d, want 1", len(contacts))
	}
}

func TestSaveContactRejectsIncomplete(t *testing.T) {
	v := okVerifier()
	db := testDB(t, v)

	tests := []struct {
		name         string
		phone, email string
	}{
		{"empty phone", "", "a@b.com"},
		{"empty email", "+880 1712-345678", ""},
		{"phone below threshold", "+1 555 22", "a@b.com"},
		{"no digits at all", "no number here", "a@b.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := db.SaveContact(context.Background(), tt.phone, tt.email, "")
			if err != nil {
				t.Fatal(err)
			}
			if res != Rejected {
				t.Errorf("result = %v, want Rejected", res)
			}
		})
	}
	if v.calls != 0 {
		t.Errorf("verifier calls = %d, want 0 (validation is local)", v.calls)
	}
}

func TestSaveContactServiceError(t *testing.T) {
	v := &stubVerifier{err: &verify.ServiceError{Status: 500}}
	db := testDB(t, v)

	_, err := db.SaveContact(context.Background(), "+880 1712-345678", "x@ex.com", "")
	if err == nil {
		t.Fatal("expected error from failing verifier")
	}

	contacts, _ := db.ListContacts(context.Background())
	if len(contacts) != 0 {
		t.Errorf("row count = %d, want 0 (nothing persisted on service error)", len(contacts))
	}
}

func TestSaveContactReplacementDemotesPriorRow(t *testing.T) {
	v := okVerifier()
	db := testDB(t, v)

	if _, err := db.SaveContact(context.Background(), "+880 1712-345678", "old@ex.com", ""); err != nil {
		t.Fatal(err)
	}

	// Same phone, new email, service says the new email supersedes.
	v.decision = verify.Decision{Verified: true, IsReplacement: true}
	res, err := db.SaveContact(context.Background(), "+880 1712-345678", "new@ex.com", "")
	if err != nil {
		t.Fatal(err)
	}
	if res != Saved {
		t.Fatalf("result = %v, want Saved", res)
	}

	contacts, err := db.ListContacts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(contacts) != 2 {
		t.Fatalf("row count = %d, want 2 (demoted, not deleted)", len(contacts))
	}
	byEmail := map[string]Contact{}
	for _, c := range contacts {
		byEmail[c.Email] = c
	}
	if byEmail["old@ex.com"].Verified {
		t.Error("old row still verified, want demoted")
	}
	if !byEmail["new@ex.com"].Verified {
		t.Error("new row not verified")
	}
}

func TestSaveContactLooseThreshold(t *testing.T) {
	db := testDB(t, okVerifier(), WithMinPhoneLength(8))

	res, err := db.SaveContact(context.Background(), "15552231", "short@ex.com", "")
	if err != nil {
		t.Fatal(err)
	}
	if res != Saved {
		t.Errorf("result = %v, want Saved with lowered threshold", res)
	}
}

func TestListContactsOrder(t *testing.T) {
	db := testDB(t, okVerifier())
	ctx := context.Background()

	for _, email := range []string{"a@ex.com", "b@ex.com", "c@ex.com"} {
		if _, err := db.SaveContact(ctx, "+880 1712-345678", email, ""); err != nil {
			t.Fatal(err)
		}
	}

	contacts, err := db.ListContacts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(contacts) != 3 {
		t.Fatalf("got %d contacts", len(contacts))
	}
	// Same-second inserts fall back to id ordering, newest first.
	if contacts[0].Email != "c@ex.com" || contacts[2].Email != "a@ex.com" {
		t.Errorf("order = [%s %s %s], want newest first",
			contacts[0].Email, contacts[1].Email, contacts[2].Email)
	}
}

func TestCounts(t *testing.T) {
	db := testDB(t, okVerifier())
	ctx := context.Background()

	if _, err := db.SaveContact(ctx, "+880 1712-345678", "a@ex.com", ""); err != nil {
		t.Fatal(err)
	}

	total, verified, err := db.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || verified != 1 {
		t.Errorf("counts = %d/%d, want 1/1", total, verified)
	}
}
