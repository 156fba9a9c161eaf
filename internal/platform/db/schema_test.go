package db

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSchemaCoversRepositories(t *testing.T) {
	ddl := Schema()
	for _, table := range []string{"users", "venues", "shifts", "time_entries", "messages", "till_verifications", "audit_logs"} {
		assert.Contains(t, ddl, "CREATE TABLE IF NOT EXISTS "+table+" (", table)
	}
	assert.NotContains(t, strings.ToUpper(ddl), "DROP ")
}
