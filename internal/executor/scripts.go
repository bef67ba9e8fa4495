package executor

import "github.com/orbitalscope/terralens/pkg/models"

// Script describes one registered executable under ScriptsDir. The analysis
// scripts take their parameter document two ways: the older ones parse argv[1]
// as the JSON text itself, the newer ones also accept a @<file> reference.
// RawArgv selects the argv form for scripts without @-file support.
type Script struct {
	File    string
	RawArgv bool
}

// defaultScripts maps each analysis kind to its executable.
func defaultScripts() map[string]Script {
	return map[string]Script{
		models.KindDeforestation:     {File: "deforestation_analysis.py", RawArgv: true},
		models.KindMining:            {File: "process_satellite_area.py", RawArgv: true},
		models.KindFire:              {File: "process_satellite_area.py", RawArgv: true},
		models.KindSegmentation:      {File: "run_segmentation.py", RawArgv: true},
		models.KindBuildingHeight:    {File: "height_estimation.py"},
		models.KindBatchHeightChunk:  {File: "batch_height_estimation.py"},
		models.KindImagery:           {File: "fetch_satellite_imagery.py"},
		models.KindPropertyPredict:   {File: "run_xgboost_model.py"},
		models.KindInvestment:        {File: "run_xgboost_model.py"},
		models.KindEnvironmentalRisk: {File: "run_xgboost_model.py"},
	}
}
