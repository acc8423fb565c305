package database

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildPostgresDSN(t *testing.T) {
	dsn, err := buildPostgresDSN(Config{
		User:     "carenet",
		Password: "secret",
		Name:     "carenet",
		Host:     "db.internal",
		Port:     5433,
	})
	require.NoError(t, err)
	require.Equal(t, "host=db.internal port=5433 user=carenet dbname=carenet password=secret sslmode=disable", dsn)

	dsn, err = buildPostgresDSN(Config{User: "carenet", Name: "carenet", Options: map[string]string{"sslmode": "require"}})
	require.NoError(t, err)
	require.Contains(t, dsn, "sslmode=require")
	require.Contains(t, dsn, "host=localhost")
	require.Contains(t, dsn, "port=5432")

	_, err = buildPostgresDSN(Config{Name: "carenet"})
	require.Error(t, err)

	dsn, err = buildPostgresDSN(Config{DSN: "host=override"})
	require.NoError(t, err)
	require.Equal(t, "host=override", dsn)
}

func TestBuildMySQLDSN(t *testing.T) {
	dsn, err := buildMySQLDSN(Config{
		User:     "carenet",
		Password: "secret",
		Name:     "carenet",
		Host:     "db.internal",
		Port:     3307,
	})
	require.NoError(t, err)
	require.Equal(t, "carenet:secret@tcp(db.internal:3307)/carenet?charset=utf8mb4&loc=Local&parseTime=True", dsn)

	dsn, err = buildMySQLDSN(Config{User: "carenet", Name: "carenet"})
	require.NoError(t, err)
	require.Contains(t, dsn, "@tcp(127.0.0.1:3306)/carenet")

	_, err = buildMySQLDSN(Config{User: "carenet"})
	require.Error(t, err)
}
