// Package collector defines where finished crawl records, such as the
// stats dumped when a crawl closes, are stored.
package collector

type Storager interface {
	Save(datas ...*DataCell) error
	Flush() error
}

// DataCell is one row bound for Table. Data is keyed by column title.
type DataCell struct {
	Table string
	Data  map[string]any
}

func (d *DataCell) GetTableName() string {
	return d.Table
}
