package postgres

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sauverpro/goFasta/pkg/model"
	"github.com/sauverpro/goFasta/pkg/storage"
)

func newDeviceStore(db *sqlx.DB) *deviceStore {
	return &deviceStore{
		db: db,
	}
}

type deviceStore struct {
	db *sqlx.DB
}

type sqlDataDevice struct {
	DeviceID    string    `db:"device_id"`
	PlateNumber *string   `db:"plate_number"`
	LastLat     *float64  `db:"last_lat"`
	LastLon     *float64  `db:"last_lon"`
	LastSpeed   *float64  `db:"last_speed"`
	LastUpdate  time.Time `db:"last_update"`
	DestLat     *float64  `db:"dest_lat"`
	DestLon     *float64  `db:"dest_lon"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

var sqlParamsDevice = []string{
	"device_id",
	"plate_number",
	"last_lat",
	"last_lon",
	"last_speed",
	"last_update",
	"dest_lat",
	"dest_lon",
	"created_at",
	"updated_at",
}

func (d *sqlDataDevice) Scan(m *model.Device) error {
	var createdAt, updatedAt = m.CreatedAt, m.UpdatedAt

	if m.CreatedAt.IsZero() {
		createdAt = time.Now().Round(time.Second).UTC()
	}

	if m.UpdatedAt.IsZero() {
		updatedAt = time.Now().Round(time.Second).UTC()
	}

	d.DeviceID = m.DeviceID
	d.PlateNumber = m.PlateNumber
	d.LastLat = m.LastLat
	d.LastLon = m.LastLon
	d.LastSpeed = m.LastSpeed
	d.LastUpdate = m.LastUpdate
	d.DestLat = m.DestLat
	d.DestLon = m.DestLon
	d.CreatedAt = createdAt
	d.UpdatedAt = updatedAt

	return nil
}

func (d *sqlDataDevice) Model() (*model.Device, error) {
	m := &model.Device{
		DeviceID:    d.DeviceID,
		PlateNumber: d.PlateNumber,
		LastLat:     d.LastLat,
		LastLon:     d.LastLon,
		LastSpeed:   d.LastSpeed,
		LastUpdate:  d.LastUpdate,
		DestLat:     d.DestLat,
		DestLon:     d.DestLon,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}

	return m, nil
}

func (s *deviceStore) Create(m *model.Device) error {
	return createDevice(s.db, m)
}

func (s *deviceStore) Upsert(deviceID string, f storage.DeviceFields) (*model.Device, bool, error) {
	return upsertDevice(s.db, deviceID, f)
}

func (s *deviceStore) FindByDeviceID(deviceID string) (*model.Device, error) {
	return findDeviceByDeviceID(s.db, deviceID)
}

func (s *deviceStore) Update(deviceID string, f storage.DeviceFields) (*model.Device, error) {
	return updateDevice(s.db, deviceID, f)
}

func (s *deviceStore) Delete(deviceID string) (*model.Device, error) {
	return deleteDevice(s.db, deviceID)
}

func (s *deviceStore) DeleteAll(deviceIDs []string) (int64, error) {
	return deleteAllDevices(s.db, deviceIDs)
}

func (s *deviceStore) List(opt storage.ListOptions) ([]model.Device, int64, error) {
	return listDevices(s.db, opt)
}

func (s *deviceStore) Search(f storage.SearchFilter, opt storage.ListOptions) ([]model.Device, int64, error) {
	return searchDevices(s.db, f, opt)
}

func (s *deviceStore) CountTracked() (int64, error) {
	return countTrackedDevices(s.db)
}

func createDevice(db *sqlx.DB, m *model.Device) error {
	if m.LastUpdate.IsZero() {
		m.LastUpdate = time.Now().Round(time.Second).UTC()
	}

	d := sqlDataDevice{}
	if err := d.Scan(m); err != nil {
		return errors.Wrap(err, "failed to convert device model to SQL data")
	}

	query := fmt.Sprintf(
		"INSERT INTO devices (%s) VALUES (%s)",
		strings.Join(sqlParamsDevice, ", "),
		":"+strings.Join(sqlParamsDevice, ", :"),
	)
	if _, err := db.NamedExec(query, d); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrConflict
		}
		return errors.Wrap(err, "failed to create device")
	}

	m.CreatedAt = d.CreatedAt
	m.UpdatedAt = d.UpdatedAt

	return nil
}

// fieldColumns maps a partial update onto column/value pairs. Only the
// supplied fields take part in the statement, which gives the merge
// semantics: omitted fields are never touched.
func fieldColumns(f storage.DeviceFields) ([]string, []interface{}) {
	cols := make([]string, 0, 6)
	vals := make([]interface{}, 0, 6)

	if f.PlateNumber != nil {
		cols = append(cols, "plate_number")
		vals = append(vals, *f.PlateNumber)
	}
	if f.LastLat != nil {
		cols = append(cols, "last_lat")
		vals = append(vals, *f.LastLat)
	}
	if f.LastLon != nil {
		cols = append(cols, "last_lon")
		vals = append(vals, *f.LastLon)
	}
	if f.LastSpeed != nil {
		cols = append(cols, "last_speed")
		vals = append(vals, *f.LastSpeed)
	}
	if f.DestLat != nil {
		cols = append(cols, "dest_lat")
		vals = append(vals, *f.DestLat)
	}
	if f.DestLon != nil {
		cols = append(cols, "dest_lon")
		vals = append(vals, *f.DestLon)
	}

	return cols, vals
}

func upsertDevice(db *sqlx.DB, deviceID string, f storage.DeviceFields) (*model.Device, bool, error) {
	now := time.Now().Round(time.Second).UTC()

	cols, vals := fieldColumns(f)
	cols = append(cols, "device_id", "updated_at", "created_at")
	vals = append(vals, deviceID, now, now)
	if f.TouchesPosition() {
		cols = append(cols, "last_update")
		vals = append(vals, now)
	}

	placeholders := make([]string, 0, len(cols))
	for i := range cols {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
	}

	assignments := make([]string, 0, len(cols))
	for _, col := range cols {
		if col == "device_id" || col == "created_at" {
			continue
		}
		assignments = append(assignments, fmt.Sprintf("%s=EXCLUDED.%s", col, col))
	}

	// xmax is zero for a freshly inserted row, which tags the outcome as
	// a create rather than a merge.
	query := fmt.Sprintf(
		"INSERT INTO devices (%s) VALUES (%s) "+
			"ON CONFLICT (device_id) DO UPDATE SET %s "+
			"RETURNING %s, (xmax = 0) AS inserted",
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(assignments, ", "),
		strings.Join(sqlParamsDevice, ", "),
	)

	row := struct {
		sqlDataDevice
		Inserted bool `db:"inserted"`
	}{}
	if err := db.Get(&row, query, vals...); err != nil {
		return nil, false, errors.Wrap(err, "failed to upsert device")
	}

	m, err := row.sqlDataDevice.Model()
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to convert SQL data to device model")
	}

	return m, row.Inserted, nil
}

func findDeviceByDeviceID(db *sqlx.DB, deviceID string) (*model.Device, error) {
	d := sqlDataDevice{}
	query := "SELECT * FROM devices WHERE device_id=$1"
	if err := db.Get(&d, query, deviceID); err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to find device")
	}

	return d.Model()
}

func updateDevice(db *sqlx.DB, deviceID string, f storage.DeviceFields) (*model.Device, error) {
	now := time.Now().Round(time.Second).UTC()

	cols, vals := fieldColumns(f)
	cols = append(cols, "updated_at")
	vals = append(vals, now)
	if f.TouchesPosition() {
		cols = append(cols, "last_update")
		vals = append(vals, now)
	}

	assignments := make([]string, 0, len(cols))
	for i, col := range cols {
		assignments = append(assignments, fmt.Sprintf("%s=$%d", col, i+1))
	}
	vals = append(vals, deviceID)

	query := fmt.Sprintf(
		"UPDATE devices SET %s WHERE device_id=$%d RETURNING %s",
		strings.Join(assignments, ", "),
		len(vals),
		strings.Join(sqlParamsDevice, ", "),
	)

	d := sqlDataDevice{}
	if err := db.Get(&d, query, vals...); err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to update device")
	}

	return d.Model()
}

func deleteDevice(db *sqlx.DB, deviceID string) (*model.Device, error) {
	d := sqlDataDevice{}
	query := fmt.Sprintf(
		"DELETE FROM devices WHERE device_id=$1 RETURNING %s",
		strings.Join(sqlParamsDevice, ", "),
	)
	if err := db.Get(&d, query, deviceID); err != nil {
		if err == sql.ErrNoRows {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to delete device")
	}

	return d.Model()
}

func deleteAllDevices(db *sqlx.DB, deviceIDs []string) (int64, error) {
	query := "DELETE FROM devices WHERE device_id = ANY($1)"
	result, err := db.Exec(query, pq.Array(deviceIDs))
	if err != nil {
		return 0, errors.Wrap(err, "failed to bulk delete devices")
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to count deleted devices")
	}

	return count, nil
}

func listDevices(db *sqlx.DB, opt storage.ListOptions) ([]model.Device, int64, error) {
	opt = opt.Normalize()
	if !storage.ValidSortField(opt.SortBy) {
		return nil, 0, storage.ErrInvalidArgument
	}

	var total int64
	if err := db.Get(&total, "SELECT COUNT(*) FROM devices"); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count devices")
	}

	rows := make([]sqlDataDevice, 0)
	query := fmt.Sprintf(
		"SELECT * FROM devices ORDER BY %s %s LIMIT $1 OFFSET $2",
		opt.SortBy, sortDirection(opt.Order),
	)
	if err := db.Select(&rows, query, opt.PageSize, (opt.Page-1)*opt.PageSize); err != nil {
		return nil, 0, errors.Wrap(err, "failed to fetch devices")
	}

	return toModels(rows, total)
}

func searchDevices(db *sqlx.DB, f storage.SearchFilter, opt storage.ListOptions) ([]model.Device, int64, error) {
	opt = opt.Normalize()
	if !storage.ValidSortField(opt.SortBy) {
		return nil, 0, storage.ErrInvalidArgument
	}

	where := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)

	if f.Query != "" {
		args = append(args, "%"+f.Query+"%")
		where = append(where, fmt.Sprintf(
			"(device_id ILIKE $%d OR plate_number ILIKE $%d)", len(args), len(args)))
	}
	if f.PlateNumber != "" {
		args = append(args, "%"+f.PlateNumber+"%")
		where = append(where, fmt.Sprintf("plate_number ILIKE $%d", len(args)))
	}
	if f.MinSpeed != nil {
		args = append(args, *f.MinSpeed)
		where = append(where, fmt.Sprintf("last_speed >= $%d", len(args)))
	}
	if f.MaxSpeed != nil {
		args = append(args, *f.MaxSpeed)
		where = append(where, fmt.Sprintf("last_speed <= $%d", len(args)))
	}

	condition := ""
	if len(where) > 0 {
		condition = " WHERE " + strings.Join(where, " AND ")
	}

	var total int64
	if err := db.Get(&total, "SELECT COUNT(*) FROM devices"+condition, args...); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count matching devices")
	}

	args = append(args, opt.PageSize, (opt.Page-1)*opt.PageSize)
	query := fmt.Sprintf(
		"SELECT * FROM devices%s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		condition, opt.SortBy, sortDirection(opt.Order), len(args)-1, len(args),
	)

	rows := make([]sqlDataDevice, 0)
	if err := db.Select(&rows, query, args...); err != nil {
		return nil, 0, errors.Wrap(err, "failed to search devices")
	}

	return toModels(rows, total)
}

func countTrackedDevices(db *sqlx.DB) (int64, error) {
	var count int64
	query := "SELECT COUNT(*) FROM devices WHERE last_lat IS NOT NULL AND last_lon IS NOT NULL"
	if err := db.Get(&count, query); err != nil {
		return 0, errors.Wrap(err, "failed to count tracked devices")
	}

	return count, nil
}

func toModels(rows []sqlDataDevice, total int64) ([]model.Device, int64, error) {
	models := make([]model.Device, 0, len(rows))
	for _, d := range rows {
		m, err := d.Model()
		if err != nil {
			return nil, 0, errors.Wrap(err, "failed to convert SQL data to device model")
		}
		models = append(models, *m)
	}

	return models, total, nil
}

func sortDirection(order storage.SortOrder) string {
	if order == storage.SortAsc {
		return "ASC"
	}
	return "DESC"
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}
