// Package config loads the DataHub configuration file.
//
// The file is YAML. Before decoding, every string value goes through strict
// ${VAR} expansion and secret references are resolved:
//
//	auth:
//	  jwt:
//	    secret: secretref:env:DATAHUB_JWT_SECRET
//	secrets:
//	  example/example:
//	    Test: secretref:file:secrets/test.txt
//
// Missing variables, unknown providers and unknown keys are errors. Values
// not in the file keep the defaults from Default.
package config
