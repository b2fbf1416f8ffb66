package sqldb

import (
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

var (
	ErrNoColumns   = errors.New("sqldb: column can not be empty")
	ErrBadArgCount = errors.New("sqldb: args do not match columns")
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type DBer interface {
	CreateTable(TableData) error
	Insert(TableData) error
	Close() error
}

type SqlDB struct {
	options
	db *sql.DB
}

type Field struct {
	Title string
	Type  string
}

// TableData describes one statement. Args holds DataCount rows laid out
// column by column.
type TableData struct {
	TableName   string
	ColumnNames []Field
	Args        []any
	DataCount   int
	AutoKey     bool
}

func NewSqlDB(opts ...Option) (*SqlDB, error) {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	s := &SqlDB{options: options}
	if err := s.OpenDB(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *SqlDB) OpenDB() error {
	db, err := sql.Open("mysql", s.dsn)
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(s.maxConns)
	db.SetMaxIdleConns(s.maxConns)
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("ping stats db: %w", err)
	}

	s.db = db
	return nil
}

func (s *SqlDB) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SqlDB) CreateTable(t TableData) error {
	query, err := CreateTableSQL(t)
	if err != nil {
		return err
	}
	s.logger.Debug("create table", zap.String("sql", query))
	_, err = s.db.Exec(query)

	return err
}

func (s *SqlDB) Insert(t TableData) error {
	query, err := InsertSQL(t)
	if err != nil {
		return err
	}
	s.logger.Debug("insert table", zap.String("sql", query), zap.Int("rows", t.DataCount))
	_, err = s.db.Exec(query, t.Args...)

	return err
}

func checkTable(t TableData) error {
	if len(t.ColumnNames) == 0 {
		return ErrNoColumns
	}
	if !identRe.MatchString(t.TableName) {
		return fmt.Errorf("sqldb: bad table name %q", t.TableName)
	}
	for _, c := range t.ColumnNames {
		if !identRe.MatchString(c.Title) {
			return fmt.Errorf("sqldb: bad column name %q", c.Title)
		}
	}
	return nil
}

func CreateTableSQL(t TableData) (string, error) {
	if err := checkTable(t); err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS `" + t.TableName + "` (")
	if t.AutoKey {
		b.WriteString("id INT(12) NOT NULL PRIMARY KEY AUTO_INCREMENT,")
	}
	cols := make([]string, 0, len(t.ColumnNames))
	for _, c := range t.ColumnNames {
		cols = append(cols, "`"+c.Title+"` "+c.Type)
	}
	b.WriteString(strings.Join(cols, ","))
	b.WriteString(") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;")

	return b.String(), nil
}

func InsertSQL(t TableData) (string, error) {
	if err := checkTable(t); err != nil {
		return "", err
	}
	if t.DataCount <= 0 || len(t.Args) != t.DataCount*len(t.ColumnNames) {
		return "", fmt.Errorf("%w: %d args for %d rows of %d columns",
			ErrBadArgCount, len(t.Args), t.DataCount, len(t.ColumnNames))
	}
	cols := make([]string, 0, len(t.ColumnNames))
	for _, c := range t.ColumnNames {
		cols = append(cols, "`"+c.Title+"`")
	}
	row := "(" + strings.TrimSuffix(strings.Repeat("?,", len(t.ColumnNames)), ",") + ")"
	rows := make([]string, t.DataCount)
	for i := range rows {
		rows[i] = row
	}

	return "INSERT INTO `" + t.TableName + "` (" + strings.Join(cols, ",") + ") VALUES " +
		strings.Join(rows, ",") + ";", nil
}
