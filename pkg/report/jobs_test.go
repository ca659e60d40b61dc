package report_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cascadelabs/evlake/pkg/report"
)

func TestEVLake_Report_Jobs(t *testing.T) {
	t.Parallel()

	jobs := report.Jobs()
	require.Len(t, jobs, 4)

	t.Run("every job compiles", func(t *testing.T) {
		t.Parallel()

		for _, job := range jobs {
			sql, err := job.Agg.SQL("fleet")
			require.NoError(t, err, job.Agg.Name)
			require.NotEmpty(t, sql)
		}
	})

	t.Run("artifact layout matches the fixed contract", func(t *testing.T) {
		t.Parallel()

		byName := map[string]report.Job{}
		for _, job := range jobs {
			byName[job.Agg.Name] = job
		}

		require.Equal(t, "vehicles_per_city.parquet", byName["vehicles_per_city"].File)
		require.Empty(t, byName["vehicles_per_city"].PartitionBy)

		top3 := byName["three_most_popular_vehicles"]
		require.Equal(t, 3, top3.Agg.Limit)
		require.Equal(t, []string{"make", "model"}, top3.Agg.GroupBy)

		ranked := byName["most_popular_vehicle_per_postal_code"]
		require.NotNil(t, ranked.Agg.Rank)
		require.Equal(t, "postal_code", ranked.Agg.Rank.PartitionBy)

		perYear := byName["vehicles_per_model_year"]
		require.Equal(t, "per_year", perYear.File)
		require.Equal(t, "model_year", perYear.PartitionBy)
	})

	t.Run("only the per-year artifact is partitioned", func(t *testing.T) {
		t.Parallel()

		partitioned := 0
		for _, job := range jobs {
			if job.PartitionBy != "" {
				partitioned++
			}
		}
		require.Equal(t, 1, partitioned)
	})
}
