package catalog

// Database holds the monotonic counters and name indices describing one
// logical database of tables and jobs. It is persisted via metastore as
// `<db>/database.meta`.
type Database struct {
	NextTableID int
	NextJobID   int
	// TableIDs maps a table name to its id.
	TableIDs map[string]int
	// JobNames is the set of job names that have been submitted.
	JobNames map[string]struct{}
}

// NewDatabase returns an empty, initialized Database.
func NewDatabase() *Database {
	return &Database{
		TableIDs: make(map[string]int),
		JobNames: make(map[string]struct{}),
	}
}

// HasTable reports whether name is already a known table.
func (d *Database) HasTable(name string) bool {
	_, ok := d.TableIDs[name]
	return ok
}

// HasJobName reports whether name has already been used by a job.
func (d *Database) HasJobName(name string) bool {
	_, ok := d.JobNames[name]
	return ok
}

// AllocateTableID reserves and returns the next table id for name.
func (d *Database) AllocateTableID(name string) int {
	id := d.NextTableID
	d.NextTableID++
	d.TableIDs[name] = id
	return id
}

// AllocateJobID reserves and returns the next job id for name.
func (d *Database) AllocateJobID(name string) int {
	id := d.NextJobID
	d.NextJobID++
	d.JobNames[name] = struct{}{}
	return id
}

// Clone returns a deep copy, used so validation can probe allocation
// without mutating the database until a job is known-good.
func (d *Database) Clone() *Database {
	c := &Database{
		NextTableID: d.NextTableID,
		NextJobID:   d.NextJobID,
		TableIDs:    make(map[string]int, len(d.TableIDs)),
		JobNames:    make(map[string]struct{}, len(d.JobNames)),
	}
	for k, v := range d.TableIDs {
		c.TableIDs[k] = v
	}
	for k := range d.JobNames {
		c.JobNames[k] = struct{}{}
	}
	return c
}
