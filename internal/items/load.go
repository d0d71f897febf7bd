package items

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"merchbatch/internal/services"
)

var (
	titleColumns = []string{"title", "name", "product_title"}
	pathColumns  = []string{"image_path", "resource_path", "image", "design_path"}
)

// SupportedExtensions lists the file extensions Load understands.
var SupportedExtensions = []string{".csv", ".yaml", ".yml", ".json"}

// Load reads an item list from path, choosing the parser by extension.
func Load(path string) ([]Item, error) {
	ext := strings.ToLower(filepath.Ext(path))
	var parse func(io.Reader) ([]Item, error)
	switch ext {
	case ".csv":
		parse = ParseCSV
	case ".yaml", ".yml":
		parse = ParseYAML
	case ".json":
		parse = ParseJSON
	case ".xlsx", ".xls":
		return nil, inputError("load", fmt.Sprintf("%s workbooks are not supported; export the sheet as CSV", ext), nil)
	default:
		return nil, inputError("load", fmt.Sprintf("unsupported item list extension %q", ext), nil)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, inputError("load", "open item list", err)
	}
	defer file.Close()
	return parse(file)
}

// IsSupported reports whether filename has an extension Load understands.
func IsSupported(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, candidate := range SupportedExtensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

// ParseCSV parses a header row followed by one item per row.
func ParseCSV(r io.Reader) ([]Item, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, inputError("parse csv", "item list is empty", nil)
	}
	if err != nil {
		return nil, inputError("parse csv", "read header", err)
	}
	for i := range header {
		header[i] = normalizeKey(header[i])
	}
	titleCol := findColumn(header, titleColumns)
	pathCol := findColumn(header, pathColumns)
	if pathCol < 0 {
		return nil, inputError("parse csv", fmt.Sprintf("missing image path column (one of %s)", strings.Join(pathColumns, ", ")), nil)
	}

	var list []Item
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, inputError("parse csv", "read row", err)
		}
		if blankRecord(record) {
			continue
		}
		row := make(map[string]string, len(header))
		for i, key := range header {
			if key == "" || i >= len(record) {
				continue
			}
			row[key] = strings.TrimSpace(record[i])
		}
		item, err := buildItem(len(list)+1, row, header[pathCol], columnName(header, titleCol))
		if err != nil {
			return nil, err
		}
		list = append(list, item)
	}
	return finish(list)
}

// ParseYAML parses a manifest that is either a list of item mappings or a
// mapping with an "items" list.
func ParseYAML(r io.Reader) ([]Item, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, inputError("parse yaml", "read manifest", err)
	}
	var rows []map[string]any
	if err := yaml.Unmarshal(data, &rows); err != nil {
		var wrapped struct {
			Items []map[string]any `yaml:"items"`
		}
		if err2 := yaml.Unmarshal(data, &wrapped); err2 != nil {
			return nil, inputError("parse yaml", "decode manifest", err)
		}
		rows = wrapped.Items
	}
	return fromRows("parse yaml", rows)
}

// ParseJSON parses a JSON array of item objects or an object with an "items"
// array. Numbers keep their source text so SKUs and prices are not rewritten
// in exponent form.
func ParseJSON(r io.Reader) ([]Item, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, inputError("parse json", "read manifest", err)
	}
	var rows []map[string]any
	if err := decodeJSONNumbers(data, &rows); err != nil {
		var wrapped struct {
			Items []map[string]any `json:"items"`
		}
		if err2 := decodeJSONNumbers(data, &wrapped); err2 != nil {
			return nil, inputError("parse json", "decode manifest", err)
		}
		rows = wrapped.Items
	}
	return fromRows("parse json", rows)
}

func decodeJSONNumbers(data []byte, target any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(target)
}

func fromRows(operation string, rows []map[string]any) ([]Item, error) {
	list := make([]Item, 0, len(rows))
	for _, raw := range rows {
		row := make(map[string]string, len(raw))
		for key, value := range raw {
			if value == nil {
				continue
			}
			row[normalizeKey(key)] = strings.TrimSpace(fmt.Sprint(value))
		}
		pathKey := firstPresent(row, pathColumns)
		if pathKey == "" {
			return nil, inputError(operation, fmt.Sprintf("item %d: missing image path (one of %s)", len(list)+1, strings.Join(pathColumns, ", ")), nil)
		}
		item, err := buildItem(len(list)+1, row, pathKey, firstPresent(row, titleColumns))
		if err != nil {
			return nil, err
		}
		list = append(list, item)
	}
	return finish(list)
}

func buildItem(index int, row map[string]string, pathKey, titleKey string) (Item, error) {
	item := Item{Index: index, ResourcePath: row[pathKey]}
	if titleKey != "" {
		item.Title = row[titleKey]
	}
	if item.ResourcePath == "" {
		return Item{}, inputError("parse", fmt.Sprintf("item %d (%s): image path is empty", index, item.Label()), nil)
	}
	for key, value := range row {
		if key == pathKey || key == titleKey || key == "" {
			continue
		}
		if item.Attributes == nil {
			item.Attributes = make(map[string]string)
		}
		item.Attributes[key] = value
	}
	return item, nil
}

func finish(list []Item) ([]Item, error) {
	if len(list) == 0 {
		return nil, inputError("parse", "item list contains no items", nil)
	}
	return list, nil
}

func normalizeKey(key string) string {
	key = strings.TrimPrefix(key, "\ufeff")
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.ReplaceAll(key, " ", "_")
}

func findColumn(header []string, candidates []string) int {
	for _, candidate := range candidates {
		for i, key := range header {
			if key == candidate {
				return i
			}
		}
	}
	return -1
}

func columnName(header []string, idx int) string {
	if idx < 0 {
		return ""
	}
	return header[idx]
}

func firstPresent(row map[string]string, candidates []string) string {
	for _, candidate := range candidates {
		if _, ok := row[candidate]; ok {
			return candidate
		}
	}
	return ""
}

func blankRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

func inputError(operation, message string, err error) error {
	return services.Wrap(services.ErrInput, "items", operation, message, err)
}
