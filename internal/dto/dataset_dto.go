package dto

type UploadDatasetResponse struct {
	FileName string   `json:"file_name"`
	Rows     int      `json:"rows"`
	Columns  []string `json:"columns"`
}

type DatasetStatusResponse struct {
	Phase   string   `json:"phase"`
	Rows    int      `json:"rows"`
	Columns []string `json:"columns"`
}
