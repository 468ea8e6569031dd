package storage

// s3:// locations.
import _ "github.com/viant/afsc/s3"
