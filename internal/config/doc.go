// Package config defines configuration structures for the chase CLI.
//
// Configuration can be provided via:
//   - Command-line flags
//   - Environment variables (CHASE_ prefix)
//   - YAML configuration file
//
// # Structure
//
//	bucket: s3://my-datasets?region=us-east-1
//	pool: images
//	workers: 12
//	pools:
//	  images:
//	    base_dir: images
//	    base_levels: [3]
//	    naming: basename
//	  images-deep:
//	    base_dir: images
//	    base_levels: [4, 3]
//	    naming: by-id
//	    update_prefix: updates/
//
// Pool sections are named presets: each describes one dataset layout and
// builds a pool.Pool over the configured bucket. Site-specific quirks live
// here as data, not as code.
package config
