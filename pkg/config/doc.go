// Package config loads the xeq configuration file and workbook documents.
//
// Configuration is YAML decoded with yaml.v3 and checked with validator
// tags. Workbooks are checked twice: struct tags first, then the
// embedded CUE #Workbook schema, which constrains names and rejects
// unknown fields:
//
//	wb, err := config.LoadWorkbook("budget.yaml")
//	if err != nil {
//	    return err
//	}
//	err = manager.Import(wb.Statements())
//
// Watch reruns a callback whenever a file is saved.
package config
