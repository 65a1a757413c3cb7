// Package registry persists the set of monitored services.
//
// The registry is a human-editable YAML document with a single "services"
// key. Store reads the whole file on every call and rewrites it in full on
// every mutation (Create, Update, Delete), under one mutex, via a temp file
// and rename. Records that fail to decode are skipped so one bad entry never
// hides the rest.
//
// Slugs are the primary key. Slugify derives one from the display name;
// Create resolves collisions of derived slugs with a random suffix and
// rejects colliding explicit slugs with ErrDuplicateSlug. Update never
// changes the slug.
//
// Watch uses fsnotify to report edits made to the file by other writers.
package registry
