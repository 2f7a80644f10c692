package domain

import "errors"

// Domain errors returned by the table layer, the services and repository implementations.

var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrViewNotFound indicates the saved table view does not exist.
	ErrViewNotFound = errors.New("view not found")

	// ErrInvalidID indicates the provided ID format is invalid.
	ErrInvalidID = errors.New("invalid ID format")

	// ErrInvalidFilter indicates a malformed filter descriptor or operand.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrUnknownField indicates a filter or sort on a field the resource does not expose.
	ErrUnknownField = errors.New("unknown field")

	// ErrModeNotSupported indicates a filter mode not offered for the column's data type.
	ErrModeNotSupported = errors.New("filter mode not supported for data type")

	// ErrRangeNotSupported indicates a range filter on a text or boolean column.
	ErrRangeNotSupported = errors.New("range filter not supported for data type")

	// ErrInvalidPagination indicates a negative page index or non-positive page size.
	ErrInvalidPagination = errors.New("invalid pagination")

	// ErrInvalidSort indicates a malformed sort rule.
	ErrInvalidSort = errors.New("invalid sort")

	// ErrUnknownRow indicates a row selection naming a row that is not loaded.
	ErrUnknownRow = errors.New("unknown row")

	// ErrUnknownPreload indicates a preload the resource cannot eager-load.
	ErrUnknownPreload = errors.New("unknown preload")

	// ErrInvalidRequest indicates a query request that cannot be decoded.
	ErrInvalidRequest = errors.New("invalid query request")

	// ErrUnauthorized indicates a missing or invalid bearer token.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrEmptyExport indicates an export matched no rows.
	ErrEmptyExport = errors.New("nothing to export")

	// ErrInvalidExportFormat indicates an export format the server does not render.
	ErrInvalidExportFormat = errors.New("invalid export format")

	// ErrViewNameRequired indicates a saved view without a name.
	ErrViewNameRequired = errors.New("view name is required")
)
