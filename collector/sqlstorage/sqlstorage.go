package sqlstorage

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/awaketai/crawlrt/collector"
	"github.com/awaketai/crawlrt/sqldb"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type SqlStore struct {
	mu sync.Mutex
	// rows buffered until the next flush
	dataDocker []*collector.DataCell
	db         sqldb.DBer
	Table      map[string]struct{}
	options
}

var _ collector.Storager = (*SqlStore)(nil)

func NewSqlStore(opts ...Option) (*SqlStore, error) {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	db, err := sqldb.NewSqlDB(
		sqldb.WithDSN(options.dsn),
		sqldb.WithLogger(options.logger),
	)
	if err != nil {
		return nil, err
	}

	return newSqlStore(db, options), nil
}

func newSqlStore(db sqldb.DBer, options options) *SqlStore {
	return &SqlStore{
		db:      db,
		Table:   map[string]struct{}{},
		options: options,
	}
}

func (s *SqlStore) Save(dataCells ...*collector.DataCell) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cell := range dataCells {
		tableName := cell.GetTableName()
		if _, ok := s.Table[tableName]; !ok {
			err := s.db.CreateTable(sqldb.TableData{
				TableName:   tableName,
				ColumnNames: s.fields,
				AutoKey:     true,
			})
			if err != nil {
				s.logger.Error("create table failed", zap.String("table", tableName), zap.Error(err))
				return err
			}
			s.Table[tableName] = struct{}{}
		}
		s.dataDocker = append(s.dataDocker, cell)
		if len(s.dataDocker) >= s.BatchCount {
			if err := s.flushLocked(); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *SqlStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

// Close flushes buffered rows and closes the database.
func (s *SqlStore) Close() error {
	return multierr.Append(s.Flush(), s.db.Close())
}

func (s *SqlStore) flushLocked() error {
	if len(s.dataDocker) == 0 {
		return nil
	}
	cells := s.dataDocker
	s.dataDocker = nil

	var order []string
	byTable := map[string][]*collector.DataCell{}
	for _, cell := range cells {
		name := cell.GetTableName()
		if _, ok := byTable[name]; !ok {
			order = append(order, name)
		}
		byTable[name] = append(byTable[name], cell)
	}

	var errs error
	for _, name := range order {
		args, err := s.rowArgs(byTable[name])
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		err = s.db.Insert(sqldb.TableData{
			TableName:   name,
			ColumnNames: s.fields,
			Args:        args,
			DataCount:   len(byTable[name]),
		})
		if err != nil {
			s.logger.Error("insert data failed", zap.String("table", name), zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

func (s *SqlStore) rowArgs(cells []*collector.DataCell) ([]any, error) {
	args := make([]any, 0, len(cells)*len(s.fields))
	for _, cell := range cells {
		for _, field := range s.fields {
			v, ok := cell.Data[field.Title]
			if !ok {
				return nil, fmt.Errorf("table %s: missing field %s", cell.GetTableName(), field.Title)
			}
			switch v := v.(type) {
			case nil:
				args = append(args, "")
			case string, int, int64, float64, bool:
				args = append(args, v)
			default:
				j, err := json.Marshal(v)
				if err != nil {
					s.logger.Error("marshal field failed", zap.String("field", field.Title), zap.Error(err))
					return nil, err
				}
				args = append(args, string(j))
			}
		}
	}

	return args, nil
}
