/*
Package gconf provides access to governance controlled configuration.

Each package keeps its configuration as a singleton entity stored under a
well known key. Configuration is written only through Save, which
validates first, so a loaded configuration can be trusted to be sane.
*/
package gconf
