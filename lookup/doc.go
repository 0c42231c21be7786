// Package lookup finds recently modified objects under the source prefix
// and parses the human-readable timedelta strings that bound the search
// window.
package lookup
