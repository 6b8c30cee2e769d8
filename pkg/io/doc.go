// Package io exports computed overcrowding ratios as JSON or CSV.
//
// # Rows
//
// [Ratios.Rows] flattens an aggregation into one row per entity: the
// county total first, then every cluster, then every school, each group
// sorted by ID. Schools and clusters whose ratio is undefined (no
// contributing capacity) are kept with an empty ratio so the export lists
// everything the map shows.
//
// # Formats
//
// [WriteRatiosCSV] writes the rows with a header line:
//
//	kind,id,name,cluster,enrollment,capacity,ratio,percent,over
//	county,county,County,,270,300,0.9,90,false
//	cluster,X,Northwood,,270,300,0.9,90,false
//	school,A,Alpha ES,X,120,100,1.2,120,true
//
// [WriteRatiosJSON] writes an object with the year, the county summary and
// separate cluster and school arrays. [ExportRatios] picks the format from
// the file extension.
package io
