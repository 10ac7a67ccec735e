// Package cli holds the pieces shared by the htsvoice commands: the
// kubectl-style context file, request loading, result output and styled
// terminal summaries.
//
// Configuration lives in ~/.giztoy/<app>/config.yaml:
//
//	current_context: local
//	contexts:
//	  local:
//	    name: local
//	    voices: /srv/voices
//	  prod:
//	    name: prod
//	    voices: s3://voices/prod
//	    s3: {region: eu-west-1}
//	    cache: disabled
package cli
