// Package mapview renders the overcrowding choropleth.
//
// A [Map] is the screen-space model of one dataset: projected cluster
// outlines filled with their overcrowding color, the interior border mesh,
// school markers stroked with each school's color, and the county
// statistics and legend. [New] builds it from geometry and a heatmap.
//
// # Sinks
//
// [RenderSVG] writes a standalone SVG document. Without options it shows
// the county overview; [WithFocus] zooms to a cluster (and highlights a
// school in it), [WithAllSchools] draws every school marker instead of
// only the focused cluster's, and [WithStats] and [WithLegend] add the
// side panels. The SVG carries a small script so that clicking a cluster
// in a browser zooms to it and reveals its schools, clicking a school
// highlights it, and clicking the background zooms out. The script keeps
// the statistics panel in step with the selection. Markers outside the
// focused cluster are written hidden for the script to reveal;
// [WithoutScript] leaves them out.
//
// [RenderJSON] exports the model itself, and [RenderPNG] and [RenderPDF]
// convert the SVG with rsvg-convert.
package mapview
