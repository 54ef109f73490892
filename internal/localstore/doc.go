// Package localstore provides client-local durable key/value storage.
//
// # Overview
//
// A Storage holds small named records that must survive a process restart:
// the persisted identity of the signed-in user and the backend session
// cookies. It plays the role a browser's localStorage plays for a web client.
//
// # Backends
//
//   - FileStorage: one file per key inside a directory. Writes go to a temp
//     file that is renamed into place.
//   - SQLiteStorage: a single kv table in a SQLite database (modernc.org/sqlite).
//   - MemoryStorage: process-local map, used by tests and the "memory" driver.
//
// # Visibility
//
// All backends write synchronously. Once SetItem or RemoveItem returns, the
// next GetItem in the same process observes the change.
//
// # Usage
//
//	st, err := localstore.Open(localstore.Options{Driver: "sqlite", Path: dbPath})
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
//
//	if err := st.SetItem(ctx, "user", data); err != nil {
//	    return err
//	}
package localstore
