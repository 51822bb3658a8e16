package metastore

import "fmt"

// Path layout:
//
//	<db>/database.meta
//	<db>/tables/<id>/descriptor
//	<db>/tables/<id>/<column_id>/<item_id>
//	<db>/tables/<id>/<column_id>/<item_id>.video  (video descriptor)
//	<db>/jobs/<id>/descriptor
//
// Every path is relative to the storage.Backend's own root, so "<db>" does
// not appear literally - the Backend is already scoped to one database.

func DatabasePath() string {
	return "database.meta"
}

func TableDescriptorPath(tableID int) string {
	return fmt.Sprintf("tables/%d/descriptor", tableID)
}

func ItemPath(tableID, columnID, itemID int) string {
	return fmt.Sprintf("tables/%d/%d/%d", tableID, columnID, itemID)
}

// VideoDescriptorPath names the per-item video descriptor sidecar for a
// Video column's item file.
func VideoDescriptorPath(tableID, columnID, itemID int) string {
	return fmt.Sprintf("tables/%d/%d/%d.video", tableID, columnID, itemID)
}

func JobDescriptorPath(jobID int) string {
	return fmt.Sprintf("jobs/%d/descriptor", jobID)
}
