package extract

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaName is the name attached to the structured-output response format.
const SchemaName = "Extraction_Response"

const decimalHint = "if given in degree format, MUST BE CONVERTED TO DECIMAL FORMAT"

// coordinateSchema builds the schema for one named point on the plat. The
// descriptions carry the label synonyms surveyors actually print, so the
// model can match fragments like "S/H" or "1ST" to the right field.
func coordinateSchema(latDesc, lonDesc string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"lat": map[string]any{
				"type":        []string{"string", "null"},
				"description": latDesc,
			},
			"lon": map[string]any{
				"type":        []string{"string", "null"},
				"description": lonDesc,
			},
		},
		"required":             []string{"lat", "lon"},
		"additionalProperties": false,
	}
}

func pointDescriptions(labels string) (string, string) {
	lat := fmt.Sprintf("%s: LAT N (lattitude north) in NAD 83 TX-C (texas central) format. %s", labels, decimalHint)
	lon := fmt.Sprintf("%s: LON, LONG W (longitude west) in NAD 83 TX-C (texas central) format. %s", labels, decimalHint)
	return lat, lon
}

// PlatSchema returns the JSON schema for a single plat record as a plain
// map. Every object level forbids additional properties so that strict
// structured output rejects invented fields.
func PlatSchema() map[string]any {
	shlLat, shlLon := pointDescriptions("Surface Hole Location or SHL or S/H")
	ppLat, ppLon := pointDescriptions("Penetration Point section or PP or P/P")
	ftpLat, ftpLon := pointDescriptions("First Take Point or 1ST or FTP or F/T")
	ltpLat, ltpLon := pointDescriptions("Last Take Point or LTP or L/T or LT")
	bhlLat, bhlLon := pointDescriptions("Bottom Hole Location or BHL or B/H")

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"elevation": map[string]any{
				"type":        "string",
				"description": "Elevation, Elev (or similar abbreviation), or SHL or Ground Elevation (do not include units)",
			},
			"surface_hole_location": coordinateSchema(shlLat, shlLon),
			"penetration_point":     coordinateSchema(ppLat, ppLon),
			"first_take_point":      coordinateSchema(ftpLat, ftpLon),
			"last_take_point":       coordinateSchema(ltpLat, ltpLon),
			"bottom_hole_location":  coordinateSchema(bhlLat, bhlLon),
		},
		"required": []string{
			"elevation",
			"surface_hole_location",
			"penetration_point",
			"first_take_point",
			"last_take_point",
			"bottom_hole_location",
		},
		"additionalProperties": false,
	}
}

// PlatSchemaJSON returns the plat schema serialized as raw JSON, suitable
// for embedding in a structured-output request.
func PlatSchemaJSON() (json.RawMessage, error) {
	data, err := json.Marshal(PlatSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to serialize plat schema: %w", err)
	}
	return data, nil
}

// compilePlatSchema compiles the plat schema for local validation of model
// output.
func compilePlatSchema() (*jsonschema.Schema, error) {
	raw, err := PlatSchemaJSON()
	if err != nil {
		return nil, err
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("plat.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to load plat schema: %w", err)
	}
	schema, err := compiler.Compile("plat.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile plat schema: %w", err)
	}
	return schema, nil
}

// ValidateRecordJSON checks raw record JSON against the plat schema.
// Validation is idempotent: a document that passes once passes again.
func ValidateRecordJSON(schema *jsonschema.Schema, raw json.RawMessage) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return WrapExtractError("ValidateRecordJSON", ErrInvalidResponse, err.Error())
	}
	if err := schema.Validate(doc); err != nil {
		return WrapExtractError("ValidateRecordJSON", ErrSchemaViolation, err.Error())
	}
	return nil
}
