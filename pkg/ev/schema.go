// Package ev declares the fixed schema of the electric vehicle population
// dataset and the policy that routes source columns through dictionary
// encoding.
package ev

import (
	"errors"
	"fmt"

	"github.com/cascadelabs/evlake/pkg/dataset"
)

// Source column headers as they appear in the CSV.
const (
	HeaderVIN                 = "VIN (1-10)"
	HeaderCounty              = "County"
	HeaderCity                = "City"
	HeaderState               = "State"
	HeaderPostalCode          = "Postal Code"
	HeaderModelYear           = "Model Year"
	HeaderMake                = "Make"
	HeaderModel               = "Model"
	HeaderVehicleType         = "Electric Vehicle Type"
	HeaderCAFVEligibility     = "Clean Alternative Fuel Vehicle (CAFV) Eligibility"
	HeaderElectricRange       = "Electric Range"
	HeaderBaseMSRP            = "Base MSRP"
	HeaderLegislativeDistrict = "Legislative District"
	HeaderDOLVehicleID        = "DOL Vehicle ID"
	HeaderVehicleLocation     = "Vehicle Location"
	HeaderElectricUtility     = "Electric Utility"
	HeaderCensusTract         = "2020 Census Tract"
)

// ColumnSpec binds one table column to its source header and default type.
type ColumnSpec struct {
	Name    string
	Source  string
	Type    dataset.Type
	NotNull bool
}

// Columns returns the fixed registration table layout in source column order.
func Columns() []ColumnSpec {
	return []ColumnSpec{
		{Name: "vin", Source: HeaderVIN, Type: dataset.Varchar(10), NotNull: true},
		{Name: "county", Source: HeaderCounty, Type: dataset.Varchar(40), NotNull: true},
		{Name: "city", Source: HeaderCity, Type: dataset.Varchar(40), NotNull: true},
		{Name: "state", Source: HeaderState, Type: dataset.Varchar(2), NotNull: true},
		{Name: "postal_code", Source: HeaderPostalCode, Type: dataset.Char(5), NotNull: true},
		{Name: "model_year", Source: HeaderModelYear, Type: dataset.Integer, NotNull: true},
		// Make stays a plain string under the default policy: the set of
		// brands grows over time, unlike the closed vocabularies below.
		{Name: "make", Source: HeaderMake, Type: dataset.Varchar(30), NotNull: true},
		{Name: "model", Source: HeaderModel, Type: dataset.Varchar(30)},
		{Name: "electric_vehicle_type", Source: HeaderVehicleType, Type: dataset.Varchar(60), NotNull: true},
		{Name: "cafv_eligibility", Source: HeaderCAFVEligibility, Type: dataset.Varchar(80), NotNull: true},
		{Name: "electric_range", Source: HeaderElectricRange, Type: dataset.Integer, NotNull: true},
		{Name: "base_msrp", Source: HeaderBaseMSRP, Type: dataset.Integer, NotNull: true},
		{Name: "legislative_district", Source: HeaderLegislativeDistrict, Type: dataset.Integer},
		{Name: "dol_vehicle_id", Source: HeaderDOLVehicleID, Type: dataset.Varchar(9), NotNull: true},
		{Name: "vehicle_location", Source: HeaderVehicleLocation, Type: dataset.Geometry},
		{Name: "electric_utility", Source: HeaderElectricUtility, Type: dataset.Varchar(200)},
		{Name: "census_tract_2000", Source: HeaderCensusTract, Type: dataset.Char(11), NotNull: true},
	}
}

// SourceHeaders returns the expected CSV header names in column order.
func SourceHeaders() []string {
	cols := Columns()
	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.Source
	}
	return headers
}

// EnumColumn names one source column to dictionary-encode, with an optional
// explicit type name. An empty TypeName derives the name from the header.
type EnumColumn struct {
	Source   string `yaml:"source"`
	TypeName string `yaml:"type_name"`
}

// Name returns the enum type name for the column.
func (e EnumColumn) Name() string {
	if e.TypeName != "" {
		return e.TypeName
	}
	return dataset.EnumTypeName(e.Source)
}

// TypingPolicy decides which source columns route through the dictionary
// builder instead of staying plain strings.
type TypingPolicy struct {
	EnumColumns []EnumColumn
}

// DefaultTypingPolicy dictionary-encodes the vehicle type and the CAFV
// eligibility columns, the two closed vocabularies of the dataset.
func DefaultTypingPolicy() TypingPolicy {
	return TypingPolicy{
		EnumColumns: []EnumColumn{
			{Source: HeaderVehicleType},
			{Source: HeaderCAFVEligibility, TypeName: "CAFVEligibility"},
		},
	}
}

// Validate checks that every enum column names a known source header.
func (p TypingPolicy) Validate() error {
	cols := Columns()
	for _, e := range p.EnumColumns {
		if e.Source == "" {
			return errors.New("enum column source header is required")
		}
		found := false
		for _, c := range cols {
			if c.Source == e.Source {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("enum column %q is not a known source header", e.Source)
		}
	}
	return nil
}

// SchemaParams parameterizes the table schema construction.
type SchemaParams struct {
	TableName string

	// Enums maps source headers to their derived enum types. Columns whose
	// header appears here are declared with the enum type instead of the
	// default string type.
	Enums map[string]dataset.EnumType

	// GeometryAsText declares geometry columns as plain text. Offline
	// fallback for sessions without the spatial extension.
	GeometryAsText bool
}

// TableSchema builds the typed registration table schema.
func TableSchema(p SchemaParams) (dataset.Table, error) {
	if p.TableName == "" {
		return dataset.Table{}, errors.New("table name is required")
	}

	specs := Columns()
	columns := make([]dataset.Column, 0, len(specs))
	for _, spec := range specs {
		typ := spec.Type
		if e, ok := p.Enums[spec.Source]; ok {
			typ = dataset.Enum(e)
		} else if typ == dataset.Geometry && p.GeometryAsText {
			typ = dataset.Text
		}
		columns = append(columns, dataset.Column{
			Name:    spec.Name,
			Type:    typ,
			NotNull: spec.NotNull,
		})
	}

	return dataset.Table{
		Name:    p.TableName,
		Columns: columns,
	}, nil
}
