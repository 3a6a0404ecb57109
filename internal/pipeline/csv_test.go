package pipeline

import (
	"errors"
	"strings"
	"testing"

	"github.com/upishield/shikra/internal/domain"
)

func TestParseCSV(t *testing.T) {
	t.Run("ValidBatch", func(t *testing.T) {
		input := "SenderUPI,ReceiverUPI,Amount,Timestamp\n" +
			"alice@okbank,bob@okbank,100.50,2025-08-01T10:00:00Z\n" +
			"carol@okbank,dave@okbank,200,\n"

		rows, err := ParseCSV(strings.NewReader(input))
		if err != nil {
			t.Fatalf("ParseCSV failed: %v", err)
		}
		if len(rows.Records) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(rows.Records))
		}
		// Headers are lowercased
		if rows.Records[0].Fields["senderupi"] != "alice@okbank" {
			t.Errorf("unexpected sender: %v", rows.Records[0].Fields)
		}
		if rows.Records[0].Line != 1 || rows.Records[1].Line != 2 {
			t.Errorf("expected 1-based line numbers, got %d/%d",
				rows.Records[0].Line, rows.Records[1].Line)
		}
	})

	t.Run("MissingRequiredColumns", func(t *testing.T) {
		input := "senderupi,amount\nalice@okbank,100\n"
		_, err := ParseCSV(strings.NewReader(input))
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Fatalf("expected ErrInvalidInput, got %v", err)
		}
		if !strings.Contains(err.Error(), "receiverupi") {
			t.Errorf("expected missing column named in error, got %v", err)
		}
	})

	t.Run("EmptyInput", func(t *testing.T) {
		_, err := ParseCSV(strings.NewReader(""))
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("HeaderOnly", func(t *testing.T) {
		_, err := ParseCSV(strings.NewReader("senderupi,receiverupi,amount\n"))
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput for header-only file, got %v", err)
		}
	})

	t.Run("ShortRowKept", func(t *testing.T) {
		input := "senderupi,receiverupi,amount\nalice@okbank,bob@okbank\n"
		rows, err := ParseCSV(strings.NewReader(input))
		if err != nil {
			t.Fatalf("ParseCSV failed: %v", err)
		}
		if len(rows.Records) != 1 {
			t.Fatalf("expected short row kept, got %d rows", len(rows.Records))
		}
		if _, ok := rows.Records[0].Fields["amount"]; ok {
			t.Error("expected missing amount field on short row")
		}
	})

	t.Run("WhitespaceAndCaseInsensitiveHeader", func(t *testing.T) {
		input := " SENDERUPI , ReceiverUpi ,AMOUNT \nalice@okbank, bob@okbank ,300\n"
		rows, err := ParseCSV(strings.NewReader(input))
		if err != nil {
			t.Fatalf("ParseCSV failed: %v", err)
		}
		if rows.Records[0].Fields["receiverupi"] != "bob@okbank" {
			t.Errorf("expected trimmed field value, got %q", rows.Records[0].Fields["receiverupi"])
		}
	})
}

func TestParseRowTimestamp(t *testing.T) {
	t.Run("RFC3339", func(t *testing.T) {
		ts := parseRowTimestamp("2025-08-01T10:30:00Z")
		if ts.Hour() != 10 || ts.Minute() != 30 {
			t.Errorf("unexpected parse: %v", ts)
		}
	})

	t.Run("DateTime", func(t *testing.T) {
		ts := parseRowTimestamp("2025-08-01 10:30:00")
		if ts.Year() != 2025 || ts.Hour() != 10 {
			t.Errorf("unexpected parse: %v", ts)
		}
	})

	t.Run("DateOnly", func(t *testing.T) {
		ts := parseRowTimestamp("2025-08-01")
		if ts.Year() != 2025 || ts.Month() != 8 {
			t.Errorf("unexpected parse: %v", ts)
		}
	})

	t.Run("GarbageFallsBackToNow", func(t *testing.T) {
		ts := parseRowTimestamp("next tuesday")
		if ts.IsZero() {
			t.Error("expected fallback to current time")
		}
	})
}
