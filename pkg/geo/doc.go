// Package geo decodes cluster and school geometry and projects it onto the
// map frame.
//
// Input is a TopoJSON topology holding two objects: cluster polygons and
// school points. [Decode] reads it, dequantizing and delta-decoding arcs
// when the topology carries a transform, and [Topology.Clusters] and
// [Topology.Schools] turn the objects into go-geom geometries keyed by the
// property names in [Keys].
//
// [Topology.Mesh] returns interior cluster borders (arcs shared by two
// clusters) and [Topology.Adjacency] the matching cluster pairs.
//
// When schools carry no cluster property, [AssignClusters] recomputes the
// membership by point-in-polygon tests and [Topology.SetSchoolClusters]
// writes it back into the topology.
//
// Screen coordinates come from a [Projection] (Albers by default) fitted to
// the frame by [NewProjector]; [ZoomTo] frames one cluster for the focused
// view.
package geo
