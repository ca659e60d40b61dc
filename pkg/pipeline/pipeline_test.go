package pipeline_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/cascadelabs/evlake/pkg/dataset"
	"github.com/cascadelabs/evlake/pkg/ev"
	"github.com/cascadelabs/evlake/pkg/ingest"
	"github.com/cascadelabs/evlake/pkg/pipeline"
	"github.com/cascadelabs/evlake/pkg/report"
	evtesting "github.com/cascadelabs/evlake/utils/pkg/testing"
)

// registration returns one full CSV row in source header order.
func registration(vin, city, postal, mk, model, year, evType, cafv, dolID string) []string {
	return []string{
		vin,
		"King",
		city,
		"WA",
		postal,
		year,
		mk,
		model,
		evType,
		cafv,
		"150",
		"0",
		"43",
		dolID,
		"POINT (-122.34 47.61)",
		"CITY OF SEATTLE",
		"53033007800",
	}
}

const (
	bev      = "Battery Electric Vehicle (BEV)"
	phev     = "Plug-in Hybrid Electric Vehicle (PHEV)"
	eligible = "Clean Alternative Fuel Vehicle Eligible"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// scenarioCSV writes the reference scenario: five 2020 Tesla Model 3 rows and
// two 2019 Nissan Leaf rows, all in Seattle 98101.
func scenarioCSV(t *testing.T) string {
	t.Helper()

	var rows [][]string
	for i := 0; i < 5; i++ {
		rows = append(rows, registration("5YJ3E1EA0L", "Seattle", "98101", "TESLA", "MODEL 3", "2020", bev, eligible, fmt.Sprintf("10000000%d", i)))
	}
	for i := 0; i < 2; i++ {
		rows = append(rows, registration("1N4AZ0CP5D", "Seattle", "98101", "NISSAN", "LEAF", "2019", phev, eligible, fmt.Sprintf("20000000%d", i)))
	}
	return evtesting.WriteCSV(t, "Electric_Vehicle_Population_Data.csv", ev.SourceHeaders(), rows)
}

func TestEVLake_Pipeline_New(t *testing.T) {
	t.Parallel()

	t.Run("missing logger", func(t *testing.T) {
		t.Parallel()
		p, err := pipeline.New(pipeline.Config{DB: evtesting.NewClient(t), Source: "x.csv"})
		require.Error(t, err)
		require.Nil(t, p)
		require.Contains(t, err.Error(), "logger is required")
	})

	t.Run("missing database client", func(t *testing.T) {
		t.Parallel()
		p, err := pipeline.New(pipeline.Config{Logger: evtesting.NewLogger(), Source: "x.csv"})
		require.Error(t, err)
		require.Nil(t, p)
		require.Contains(t, err.Error(), "database client is required")
	})

	t.Run("missing source", func(t *testing.T) {
		t.Parallel()
		p, err := pipeline.New(pipeline.Config{Logger: evtesting.NewLogger(), DB: evtesting.NewClient(t)})
		require.Error(t, err)
		require.Nil(t, p)
		require.Contains(t, err.Error(), "source is required")
	})

	t.Run("invalid typing policy", func(t *testing.T) {
		t.Parallel()
		p, err := pipeline.New(pipeline.Config{
			Logger: evtesting.NewLogger(),
			DB:     evtesting.NewClient(t),
			Source: "x.csv",
			Policy: ev.TypingPolicy{EnumColumns: []ev.EnumColumn{{Source: "Wheel Count"}}},
		})
		require.Error(t, err)
		require.Nil(t, p)
		require.Contains(t, err.Error(), "invalid typing policy")
	})
}

func TestEVLake_Pipeline_Run(t *testing.T) {
	t.Run("full run over the reference scenario", func(t *testing.T) {
		t.Parallel()

		client := evtesting.NewClient(t)
		source := scenarioCSV(t)
		outputDir := filepath.Join(t.TempDir(), "out")

		p, err := pipeline.New(pipeline.Config{
			Logger:         evtesting.NewLogger(),
			DB:             client,
			Source:         source,
			OutputDir:      outputDir,
			Policy:         ev.DefaultTypingPolicy(),
			GeometryAsText: true,
		})
		require.NoError(t, err)

		result, err := p.Run(t.Context())
		require.NoError(t, err)
		require.NotEmpty(t, result.RunID)
		require.Equal(t, "electric_vehicle_population_data", result.Table)
		require.EqualValues(t, 7, result.Rows)
		require.Equal(t, outputDir, result.OutputDir)
		require.Len(t, result.Artifacts, 4)
		require.Empty(t, result.Failed)

		conn, err := client.Conn(t.Context())
		require.NoError(t, err)

		t.Run("the loaded table is enum-typed", func(t *testing.T) {
			rows, err := dataset.Query(t.Context(), conn,
				`SELECT data_type FROM information_schema.columns
				 WHERE table_name = 'electric_vehicle_population_data' AND column_name = 'electric_vehicle_type'`)
			require.NoError(t, err)
			require.Equal(t, 1, rows.Count)
			require.Contains(t, rows.Rows[0]["data_type"], "ENUM")
		})

		t.Run("artifacts carry the reference results", func(t *testing.T) {
			rows, err := dataset.Query(t.Context(), conn, fmt.Sprintf(
				"SELECT city, electric_vehicle_amount FROM read_parquet(%s)",
				dataset.QuoteLiteral(filepath.Join(outputDir, "vehicles_per_city.parquet"))))
			require.NoError(t, err)
			require.Equal(t, 1, rows.Count)
			require.Equal(t, "Seattle", rows.Rows[0]["city"])
			require.EqualValues(t, 7, rows.Rows[0]["electric_vehicle_amount"])

			rows, err = dataset.Query(t.Context(), conn, fmt.Sprintf(
				"SELECT make, model, vehicle_amount FROM read_parquet(%s)",
				dataset.QuoteLiteral(filepath.Join(outputDir, "three_most_popular_vehicles.parquet"))))
			require.NoError(t, err)
			require.Equal(t, 2, rows.Count)
			require.Equal(t, "TESLA", rows.Rows[0]["make"])
			require.EqualValues(t, 5, rows.Rows[0]["vehicle_amount"])
			require.Equal(t, "NISSAN", rows.Rows[1]["make"])
			require.EqualValues(t, 2, rows.Rows[1]["vehicle_amount"])
		})
	})

	t.Run("derives a timestamped output directory from the clock", func(t *testing.T) {
		t.Chdir(t.TempDir())

		clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC))

		p, err := pipeline.New(pipeline.Config{
			Logger:         evtesting.NewLogger(),
			Clock:          clock,
			DB:             evtesting.NewClient(t),
			Source:         scenarioCSV(t),
			Policy:         ev.DefaultTypingPolicy(),
			GeometryAsText: true,
		})
		require.NoError(t, err)

		result, err := p.Run(t.Context())
		require.NoError(t, err)
		require.Equal(t, filepath.Join("output", "2024-05-01_12-30-00"), result.OutputDir)
	})

	t.Run("fails fast when the source is missing", func(t *testing.T) {
		t.Parallel()

		p, err := pipeline.New(pipeline.Config{
			Logger: evtesting.NewLogger(),
			DB:     evtesting.NewClient(t),
			Source: "no/such/file.csv",
			Policy: ev.DefaultTypingPolicy(),
		})
		require.NoError(t, err)

		result, err := p.Run(t.Context())
		require.ErrorIs(t, err, ingest.ErrSourceRead)
		require.Nil(t, result)
	})

	t.Run("load failure leaves no table and skips reporting", func(t *testing.T) {
		t.Parallel()

		client := evtesting.NewClient(t)

		rows := [][]string{
			registration("5YJ3E1EA0L", "Seattle", "98101", "TESLA", "MODEL 3", "2020", bev, eligible, "100000001"),
		}
		// Model year that cannot coerce to INTEGER.
		rows = append(rows, registration("1N4AZ0CP5D", "Seattle", "98101", "NISSAN", "LEAF", "unknown", phev, eligible, "200000001"))
		source := evtesting.WriteCSV(t, "fleet.csv", ev.SourceHeaders(), rows)

		p, err := pipeline.New(pipeline.Config{
			Logger:         evtesting.NewLogger(),
			DB:             client,
			Source:         source,
			OutputDir:      filepath.Join(t.TempDir(), "out"),
			Policy:         ev.DefaultTypingPolicy(),
			GeometryAsText: true,
		})
		require.NoError(t, err)

		result, err := p.Run(t.Context())
		require.ErrorIs(t, err, ingest.ErrTypeCoercion)
		require.Nil(t, result)

		conn, err := client.Conn(t.Context())
		require.NoError(t, err)
		var n int
		err = conn.QueryRow(t.Context(),
			"SELECT COUNT(*) FROM information_schema.tables WHERE table_name = 'fleet'").Scan(&n)
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("partial reporting failure still returns the result", func(t *testing.T) {
		t.Parallel()

		// An unwritable output root makes every export fail while the
		// ingestion phase succeeds.
		client := evtesting.NewClient(t)

		p, err := pipeline.New(pipeline.Config{
			Logger:         evtesting.NewLogger(),
			DB:             client,
			Source:         scenarioCSV(t),
			OutputDir:      filepath.Join(scenarioCSV(t), "not-a-dir"),
			Policy:         ev.DefaultTypingPolicy(),
			GeometryAsText: true,
		})
		require.NoError(t, err)

		result, err := p.Run(t.Context())
		require.Error(t, err)
		require.ErrorIs(t, err, report.ErrExportWrite)
		require.NotNil(t, result)
		require.EqualValues(t, 7, result.Rows)
		require.Len(t, result.Failed, 4)
	})
}

func TestEVLake_Pipeline_LoadFileConfig(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := pipeline.LoadFileConfig("no/such/config.yaml")
		require.Error(t, err)
	})

	t.Run("defaults the typing policy when omitted", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "config.yaml")
		writeFile(t, path, "source: data/fleet.csv\noutput_dir: out\n")

		cfg, err := pipeline.LoadFileConfig(path)
		require.NoError(t, err)
		require.Equal(t, "data/fleet.csv", cfg.Source)
		require.Equal(t, "out", cfg.OutputDir)
		require.Equal(t, ev.DefaultTypingPolicy(), cfg.Policy())
	})

	t.Run("explicit enum columns override the default", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "config.yaml")
		writeFile(t, path, `source: fleet.csv
no_spatial: true
enum_columns:
  - source: "Make"
  - source: "Electric Vehicle Type"
    type_name: "VehicleKind"
`)

		cfg, err := pipeline.LoadFileConfig(path)
		require.NoError(t, err)
		require.True(t, cfg.NoSpatial)

		policy := cfg.Policy()
		require.Len(t, policy.EnumColumns, 2)
		require.Equal(t, "Make", policy.EnumColumns[0].Name())
		require.Equal(t, "VehicleKind", policy.EnumColumns[1].Name())
	})

	t.Run("explicit empty list disables dictionary encoding", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "config.yaml")
		writeFile(t, path, "source: fleet.csv\nenum_columns: []\n")

		cfg, err := pipeline.LoadFileConfig(path)
		require.NoError(t, err)
		require.Empty(t, cfg.Policy().EnumColumns)
	})

	t.Run("rejects malformed yaml", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "config.yaml")
		writeFile(t, path, "source: [unclosed\n")

		_, err := pipeline.LoadFileConfig(path)
		require.Error(t, err)
	})
}
