// Package devsearch embeds the devsearch write and search paths in a Go
// program: devices go to a relational record store first and are mirrored
// into a RediSearch index under the id the record store assigned.
//
//	client, _ := devsearch.New(ctx,
//	    devsearch.WithPostgres("postgres://app@localhost/devices?sslmode=disable"),
//	    devsearch.WithRedis("localhost:6379", ""),
//	)
//	defer client.Close()
//
//	dev, _ := client.Create(ctx, devsearch.Device{Title: "Desk lamp", Content: "warm light"})
//	hits, _ := client.Search(ctx, "lamp")
//
// A failed index write after a committed record is reported as a
// *PartialWriteError; the record stays and Reindex (or the devsearch
// server's outbox worker) brings the index back in line.
package devsearch
