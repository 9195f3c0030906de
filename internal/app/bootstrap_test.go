package app

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0pancd04/rota-ai-desertation/internal/config"
	"github.com/0pancd04/rota-ai-desertation/pkg/model"
	"github.com/0pancd04/rota-ai-desertation/pkg/roster"
	"github.com/0pancd04/rota-ai-desertation/pkg/store"
	"github.com/0pancd04/rota-ai-desertation/pkg/travel"
)

func TestOpenStorage_Memory(t *testing.T) {
	s, err := OpenStorage(context.Background(), &config.DatabaseConfig{Driver: config.DriverMemory})
	require.NoError(t, err)
	defer s.Close()

	assert.IsType(t, &store.MemoryStore{}, s.Store)
	assert.Nil(t, s.DB)
	assert.NoError(t, s.Health(context.Background()))
}

func TestOpenStorage_SQLite(t *testing.T) {
	cfg := config.Default().Database
	cfg.Driver = config.DriverSQLite
	cfg.Path = filepath.Join(t.TempDir(), "rota.db")

	s, err := OpenStorage(context.Background(), &cfg)
	require.NoError(t, err)
	defer s.Close()
	require.NotNil(t, s.DB)
	require.NoError(t, s.Health(context.Background()))

	start := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	id, err := s.Store.CreateAssignment(context.Background(), &model.Assignment{
		EmployeeID: "E1", PatientID: "P1", ServiceType: model.ServiceMedicine,
		StartTime: start, EndTime: start.Add(30 * time.Minute), DurationMinutes: 30,
	})
	require.NoError(t, err)
	assert.Positive(t, id)
}

func TestOpenStorage_UnknownDriver(t *testing.T) {
	_, err := OpenStorage(context.Background(), &config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}

func TestNewTravel(t *testing.T) {
	ctx := context.Background()

	t.Run("启发式", func(t *testing.T) {
		cfg := config.Default()
		tr, err := NewTravel(ctx, cfg, nil)
		require.NoError(t, err)
		defer tr.Close()

		m, err := tr.Provider.TravelTime(ctx, "A", "B", model.TransportCar)
		require.NoError(t, err)
		assert.Equal(t, travel.NewHeuristicProvider().Estimate("A", "B", model.TransportCar), m)
	})

	t.Run("时间表", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "matrix.json")
		require.NoError(t, os.WriteFile(path, []byte(`[{"from":"A","to":"B","minutes":7}]`), 0o600))

		cfg := config.Default()
		cfg.Travel.Provider = config.TravelTable
		cfg.Travel.TablePath = path

		var sources []string
		tr, err := NewTravel(ctx, cfg, func(s string) { sources = append(sources, s) })
		require.NoError(t, err)

		m, err := tr.Provider.TravelTime(ctx, "B", "A", model.TransportWalking)
		require.NoError(t, err)
		assert.Equal(t, 7, m)
		assert.Contains(t, sources, travel.SourceTable)
	})

	t.Run("Redis缓存", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := config.Default()
		cfg.Redis.Enabled = true
		cfg.Redis.Host = mr.Host()
		cfg.Redis.Port = mustPort(t, mr.Port())

		tr, err := NewTravel(ctx, cfg, nil)
		require.NoError(t, err)
		defer tr.Close()

		_, err = tr.Provider.TravelTime(ctx, "A", "B", model.TransportCar)
		require.NoError(t, err)
		assert.NotEmpty(t, mr.Keys(), "查询结果写入 Redis")
	})

	t.Run("未知来源", func(t *testing.T) {
		cfg := config.Default()
		cfg.Travel.Provider = "carrier-pigeon"
		_, err := NewTravel(ctx, cfg, nil)
		assert.Error(t, err)
	})

	t.Run("时间表缺失", func(t *testing.T) {
		cfg := config.Default()
		cfg.Travel.Provider = config.TravelTable
		cfg.Travel.TablePath = filepath.Join(t.TempDir(), "missing.json")
		_, err := NewTravel(ctx, cfg, nil)
		assert.Error(t, err)
	})
}

func TestLoadRoster(t *testing.T) {
	dir := t.TempDir()
	src := &model.Roster{
		Employees: []*model.Employee{{ID: "E1", Name: "Alice", ShiftStart: "09:00", ShiftEnd: "17:00"}},
		Patients:  []*model.Patient{{ID: "P1", Name: "Pat"}},
	}

	data, err := roster.Workbook(src)
	require.NoError(t, err)
	xlsx := filepath.Join(dir, "roster.xlsx")
	require.NoError(t, os.WriteFile(xlsx, data, 0o600))

	r, rep, err := LoadRoster(xlsx)
	require.NoError(t, err)
	assert.Len(t, r.Employees, 1)
	assert.Equal(t, 1, rep.Patients)

	jsonPath := filepath.Join(dir, "roster.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"employees":[{"id":"E1"}],"patients":[{"id":"P1"},{"id":"P2"}]}`), 0o600))
	r, rep, err = LoadRoster(jsonPath)
	require.NoError(t, err)
	assert.Len(t, r.Patients, 2)
	assert.Equal(t, 2, rep.Patients)

	_, _, err = LoadRoster(filepath.Join(dir, "roster.csv"))
	assert.Error(t, err)
}

func mustPort(t *testing.T, s string) int {
	t.Helper()
	p, err := strconv.Atoi(s)
	require.NoError(t, err)
	return p
}
