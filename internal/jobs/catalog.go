package jobs

// Catalog is the read-only job collection a filter query runs against. It is
// built once after provisioning and shared by every request.
type Catalog struct {
	jobs   []Job
	fields []Field
}

// NewCatalog copies jobs into a new Catalog, keeping their order.
func NewCatalog(jobs []Job) *Catalog {
	owned := make([]Job, len(jobs))
	copy(owned, jobs)
	fields := make([]Field, len(Fields))
	copy(fields, Fields)
	return &Catalog{jobs: owned, fields: fields}
}

// Jobs returns the catalog's jobs in load order. Callers must not modify the
// returned slice.
func (c *Catalog) Jobs() []Job {
	return c.jobs
}

// Fields returns the searchable fields.
func (c *Catalog) Fields() []Field {
	return c.fields
}

// Len returns the number of jobs.
func (c *Catalog) Len() int {
	return len(c.jobs)
}
