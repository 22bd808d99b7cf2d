// Package query filters and reshapes JSON documents with JMESPath.
//
//	books[?price < `500` && category == 'Fiction'].title
//	phoneNumbers[?type == 'iPhone'].number
package query
