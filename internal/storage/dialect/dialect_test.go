package dialect

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		dialectType DialectType
		wantName    string
		wantErr     bool
	}{
		{"sqlite", SQLite, "sqlite", false},
		{"mysql", MySQL, "mysql", false},
		{"postgres", DialectType("postgres"), "", true},
		{"unknown", DialectType("unknown"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(tt.dialectType)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err == nil && d.Name() != tt.wantName {
				t.Errorf("Name() = %v, want %v", d.Name(), tt.wantName)
			}
		})
	}
}

func TestFromDriverName(t *testing.T) {
	tests := []struct {
		driverName string
		wantName   string
		wantErr    bool
	}{
		{"sqlite", "sqlite", false},
		{"sqlite3", "sqlite", false},
		{"MySQL", "mysql", false},
		{"unknown", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.driverName, func(t *testing.T) {
			d, err := FromDriverName(tt.driverName)
			if (err != nil) != tt.wantErr {
				t.Errorf("FromDriverName() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err == nil && d.Name() != tt.wantName {
				t.Errorf("Name() = %v, want %v", d.Name(), tt.wantName)
			}
		})
	}
}

func TestQuoteIdent(t *testing.T) {
	sqlite, _ := New(SQLite)
	my, _ := New(MySQL)

	if got := sqlite.QuoteIdent(`po"sts`); got != `"po""sts"` {
		t.Errorf("sqlite QuoteIdent() = %s", got)
	}
	if got := my.QuoteIdent("po`sts"); got != "`po``sts`" {
		t.Errorf("mysql QuoteIdent() = %s", got)
	}
}

func TestUpsertClause(t *testing.T) {
	sqlite, _ := New(SQLite)
	my, _ := New(MySQL)

	tests := []struct {
		name string
		d    Dialect
		cols []string
		want string
	}{
		{"sqlite update", sqlite, []string{"item"}, "ON CONFLICT(pk) DO UPDATE SET item=excluded.item"},
		{"sqlite nothing", sqlite, nil, "ON CONFLICT(pk) DO NOTHING"},
		{"mysql update", my, []string{"item"}, "ON DUPLICATE KEY UPDATE item = VALUES(item)"},
		{"mysql nothing", my, nil, "ON DUPLICATE KEY UPDATE pk = pk"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.d.UpsertClause("pk", tt.cols); got != tt.want {
				t.Errorf("UpsertClause() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	sqlite, _ := New(SQLite)
	my, _ := New(MySQL)

	dup := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	if !my.IsUniqueViolation(fmt.Errorf("insert: %w", dup)) {
		t.Error("mysql: wrapped 1062 not detected")
	}
	if my.IsUniqueViolation(&mysql.MySQLError{Number: 1146}) {
		t.Error("mysql: 1146 reported as unique violation")
	}
	if !sqlite.IsUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: posts.pk (2067)")) {
		t.Error("sqlite: unique violation not detected")
	}
	if sqlite.IsUniqueViolation(nil) {
		t.Error("sqlite: nil reported as unique violation")
	}
}
