package usage

import (
	"context"
	"log/slog"
	"testing"

	"github.com/rubii22/chatbot-for-todoapp/internal/store"
)

func newTestLedger(t *testing.T) *Store {
	t.Helper()

	st, err := store.Open(":memory:", slog.Default())
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ledger, err := New(st.DB())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return ledger
}

func TestRecordAndSummary(t *testing.T) {
	ledger := newTestLedger(t)
	ctx := context.Background()

	records := []Record{
		{UserID: "u1", ConversationID: 1, Model: "m1", Phase: "tools", InputTokens: 100, OutputTokens: 20},
		{UserID: "u1", ConversationID: 1, Model: "m1", Phase: "narrate", InputTokens: 150, OutputTokens: 40},
		{UserID: "u1", ConversationID: 2, Model: "m2", Phase: "tools", InputTokens: 50, OutputTokens: 10},
		{UserID: "u2", ConversationID: 3, Model: "m1", Phase: "tools", InputTokens: 999, OutputTokens: 999},
	}
	for _, rec := range records {
		if err := ledger.Record(ctx, rec); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	sum, err := ledger.UserSummary("u1")
	if err != nil {
		t.Fatalf("UserSummary() error = %v", err)
	}
	if sum.TotalRecords != 3 {
		t.Errorf("TotalRecords = %d, want 3", sum.TotalRecords)
	}
	if sum.TotalInputTokens != 300 {
		t.Errorf("TotalInputTokens = %d, want 300", sum.TotalInputTokens)
	}
	if sum.TotalOutputTokens != 70 {
		t.Errorf("TotalOutputTokens = %d, want 70", sum.TotalOutputTokens)
	}

	// Other users' records stay out of the totals.
	byModel, err := ledger.UserSummaryByModel("u1")
	if err != nil {
		t.Fatalf("UserSummaryByModel() error = %v", err)
	}
	if len(byModel) != 2 {
		t.Fatalf("byModel = %+v, want 2 models", byModel)
	}
	if byModel["m1"].TotalInputTokens != 250 || byModel["m2"].TotalInputTokens != 50 {
		t.Errorf("byModel = m1:%+v m2:%+v", byModel["m1"], byModel["m2"])
	}
}

func TestEmptySummary(t *testing.T) {
	ledger := newTestLedger(t)

	sum, err := ledger.UserSummary("nobody")
	if err != nil {
		t.Fatalf("UserSummary() error = %v", err)
	}
	if sum.TotalRecords != 0 || sum.TotalInputTokens != 0 || sum.TotalOutputTokens != 0 {
		t.Errorf("sum = %+v, want zeros", sum)
	}
}

func TestNilLedgerIsNoop(t *testing.T) {
	var ledger *Store
	if err := ledger.Record(context.Background(), Record{UserID: "u1"}); err != nil {
		t.Errorf("nil Record() error = %v", err)
	}
}
