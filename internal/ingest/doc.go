// Package ingest imports running orders written as YAML.
//
// A running order file describes one rundown, the playlist it belongs to and
// optionally the studio definition. Apply stages the documents on a
// RundownCache so the import commits in one SaveAllToDatabase under the
// rundown lock. Re-importing a rundown replaces its segments, parts and
// pieces; documents no longer present are removed.
//
//	studio:
//	  id: studio-a
//	  mappings:
//	    vt: {device: caspar, lookahead: preload, lookaheadDepth: 2}
//	playlist:
//	  id: evening
//	  name: Evening News
//	rundown:
//	  id: evening-1
//	  segments:
//	    - id: headlines
//	      parts:
//	        - id: opener
//	          pieces:
//	            - {id: opener-vt, sourceLayer: vt, objects: [{id: clip1, layer: vt}]}
package ingest
