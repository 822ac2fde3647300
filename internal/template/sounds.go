package template

// fallbackSounds is the static sound list served when the database is
// unreachable, so randomized audio keeps working in degraded mode.
var fallbackSounds = []Sound{
	{Name: "abx_617750", URL: "https://storage.nocodecult.io/sounds/abx_617750.mp3"},
	{Name: "aryan_405142", URL: "https://storage.nocodecult.io/sounds/aryan_405142.mp3"},
	{Name: "audge_436110", URL: "https://storage.nocodecult.io/sounds/audge_436110.mp3"},
	{Name: "byebye_301713", URL: "https://storage.nocodecult.io/sounds/byebye_301713.mp3"},
	{Name: "cam_982175", URL: "https://storage.nocodecult.io/sounds/cam_982175.mp3"},
	{Name: "ceezy_024278", URL: "https://storage.nocodecult.io/sounds/ceezy_024278.mp3"},
	{Name: "choso_373014", URL: "https://storage.nocodecult.io/sounds/choso_373014.mp3"},
	{Name: "dream_036374", URL: "https://storage.nocodecult.io/sounds/dream_036374.mp3"},
	{Name: "fever_407568", URL: "https://storage.nocodecult.io/sounds/fever_407568.mp3"},
	{Name: "fithackers_370326", URL: "https://storage.nocodecult.io/sounds/fithackers_370326.mp3"},
	{Name: "flop_102038", URL: "https://storage.nocodecult.io/sounds/flop_102038.mp3"},
	{Name: "hamster_994401", URL: "https://storage.nocodecult.io/sounds/hamster_994401.mp3"},
	{Name: "hardtekk_594897", URL: "https://storage.nocodecult.io/sounds/hardtekk_594897.mp3"},
	{Name: "havanagila_799377", URL: "https://storage.nocodecult.io/sounds/havanagila_799377.mp3"},
	{Name: "jacob_570782", URL: "https://storage.nocodecult.io/sounds/jacob_570782.mp3"},
	{Name: "lost_353271", URL: "https://storage.nocodecult.io/sounds/lost_353271.mp3"},
	{Name: "ltb_458015", URL: "https://storage.nocodecult.io/sounds/ltb_458015.mp3"},
	{Name: "lynx_793367", URL: "https://storage.nocodecult.io/sounds/lynx_793367.mp3"},
	{Name: "magnolia_282070", URL: "https://storage.nocodecult.io/sounds/magnolia_282070.mp3"},
	{Name: "moser_965048", URL: "https://storage.nocodecult.io/sounds/moser_965048.mp3"},
	{Name: "oddfellow_384078", URL: "https://storage.nocodecult.io/sounds/oddfellow_384078.mp3"},
	{Name: "orthodox_361440", URL: "https://storage.nocodecult.io/sounds/orthodox_361440.mp3"},
	{Name: "reggie_964382", URL: "https://storage.nocodecult.io/sounds/reggie_964382.mp3"},
	{Name: "rukia_707361", URL: "https://storage.nocodecult.io/sounds/rukia_707361.mp3"},
	{Name: "seraph_352471", URL: "https://storage.nocodecult.io/sounds/seraph_352471.mp3"},
	{Name: "serbian_873750", URL: "https://storage.nocodecult.io/sounds/serbian_873750.mp3"},
	{Name: "sound_01_707350", URL: "https://storage.nocodecult.io/sounds/sound_01_707350.mp3"},
	{Name: "spidey_468257", URL: "https://storage.nocodecult.io/sounds/spidey_468257.mp3"},
	{Name: "techdeck_088450", URL: "https://storage.nocodecult.io/sounds/techdeck_088450.mp3"},
	{Name: "tomrmx_125325", URL: "https://storage.nocodecult.io/sounds/tomrmx_125325.mp3"},
	{Name: "user_415328", URL: "https://storage.nocodecult.io/sounds/user_415328.mp3"},
	{Name: "vril_048646", URL: "https://storage.nocodecult.io/sounds/vril_048646.mp3"},
	{Name: "wevrix_790495", URL: "https://storage.nocodecult.io/sounds/wevrix_790495.mp3"},
	{Name: "winnie_886160", URL: "https://storage.nocodecult.io/sounds/winnie_886160.mp3"},
}
