package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ananth-NQI/intake-backend/internal/config"
)

func TestDSN(t *testing.T) {
	local := DSN(config.DatabaseConfig{Password: "pw", Name: "intake", Host: "localhost", Port: "5432", SSLMode: "disable"})
	assert.Equal(t, "host=localhost user=postgres password=pw dbname=intake port=5432 sslmode=disable", local)

	cloud := DSN(config.DatabaseConfig{User: "svc", Password: "pw", Name: "intake", InstanceConnectionName: "proj:region:db"})
	assert.Equal(t, "host=/cloudsql/proj:region:db user=svc password=pw dbname=intake sslmode=disable", cloud)
}
