// Package report runs the fixed aggregation jobs over the loaded table and
// exports each as a Parquet artifact.
package report

import "github.com/cascadelabs/evlake/pkg/dataset"

// Job pairs one aggregation with its artifact layout. A non-empty
// PartitionBy produces a directory of per-value file groups instead of a
// single file.
type Job struct {
	Agg         dataset.Aggregation
	File        string
	PartitionBy string
}

// Jobs returns the four fixed reporting jobs. They are mutually independent
// and read-only; ties in the ranked jobs break deterministically on the
// group key (make, model).
func Jobs() []Job {
	return []Job{
		{
			Agg: dataset.Aggregation{
				Name:    "vehicles_per_city",
				GroupBy: []string{"city"},
				Metrics: []dataset.Metric{{Func: "count", As: "electric_vehicle_amount"}},
			},
			File: "vehicles_per_city.parquet",
		},
		{
			Agg: dataset.Aggregation{
				Name:    "three_most_popular_vehicles",
				GroupBy: []string{"make", "model"},
				Metrics: []dataset.Metric{{Func: "count", As: "vehicle_amount"}},
				OrderBy: []dataset.OrderBy{
					{Column: "vehicle_amount", Desc: true},
					{Column: "make"},
					{Column: "model"},
				},
				Limit: 3,
			},
			File: "three_most_popular_vehicles.parquet",
		},
		{
			Agg: dataset.Aggregation{
				Name:    "most_popular_vehicle_per_postal_code",
				GroupBy: []string{"postal_code", "make", "model"},
				Metrics: []dataset.Metric{{Func: "count", As: "vehicle_count"}},
				OrderBy: []dataset.OrderBy{{Column: "vehicle_count", Desc: true}},
				Rank: &dataset.RankWindow{
					PartitionBy: "postal_code",
					OrderBy: []dataset.OrderBy{
						{Column: "vehicle_count", Desc: true},
						{Column: "make"},
						{Column: "model"},
					},
				},
			},
			File: "most_popular_vehicle_per_postal_code.parquet",
		},
		{
			Agg: dataset.Aggregation{
				Name:    "vehicles_per_model_year",
				GroupBy: []string{"model_year"},
				Metrics: []dataset.Metric{{Func: "count", As: "electric_vehicle_amount"}},
			},
			File:        "per_year",
			PartitionBy: "model_year",
		},
	}
}
