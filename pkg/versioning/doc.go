/*
Package versioning manages flows and their immutable, numbered versions.

Saving runs the validator authoritatively: any error-severity violation fails
the save with a *domain.ValidationFailedError carrying every violation, and
nothing is written. Saves to one flow are serialized so version numbers are
allocated as previous maximum plus one without gaps or collisions. Publishing
is a separate step from saving.
*/
package versioning
