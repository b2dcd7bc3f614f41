// Package adapter bridges persistence records to the application ports.
// Each adapter converts between the storage and domain models of one port
// and leaves error mapping to the application layer.
package adapter
