package utils

// AttributeMap is the raw attribute block of a component as read from a config file. Components
// decode it into their typed config.
type AttributeMap map[string]interface{}
