// Package services defines the shared error taxonomy and context keys used
// across pipeline stages and external engine clients.
package services
