package tokenizer

// stopWords is the Spanish stop list applied before stemming.
var stopWords = toSet(
	"de", "la", "que", "el", "en", "y", "a", "los", "del", "se", "las", "por",
	"un", "para", "con", "no", "una", "su", "al", "lo", "como", "más", "pero",
	"sus", "le", "ya", "o", "este", "sí", "porque", "esta", "entre", "cuando",
	"muy", "sin", "sobre", "también", "me", "hasta", "hay", "donde", "quien",
	"desde", "todo", "nos", "durante", "todos", "uno", "les", "ni", "contra",
	"otros", "ese", "eso", "ante", "ellos", "e", "esto", "mí", "antes",
	"algunos", "qué", "unos", "yo", "otro", "otras", "otra", "él", "tanto",
	"esa", "estos", "mucho", "quienes", "nada", "muchos", "cual", "poco",
	"ella", "estar", "estas", "algunas", "algo", "nosotros", "mi", "mis", "tú",
	"te", "ti", "tu", "tus", "ellas", "nosotras", "vosotros", "vosotras", "os",
	"mío", "mía", "míos", "mías", "tuyo", "tuya", "tuyos", "tuyas", "suyo",
	"suya", "suyos", "suyas", "nuestro", "nuestra", "nuestros", "nuestras",
	"vuestro", "vuestra", "vuestros", "vuestras", "esos", "esas", "estoy",
	"estás", "está", "estamos", "estáis", "están", "esté", "estés", "estemos",
	"estéis", "estén", "estaba", "estaban", "estuvo", "estado", "he", "has",
	"ha", "hemos", "habéis", "han", "haya", "había", "habían", "hubo", "soy",
	"eres", "es", "somos", "sois", "son", "sea", "sean", "era", "eran", "fue",
	"fueron", "sido", "siendo", "tengo", "tiene", "tienen", "tenemos", "tenía",
	"tuvo", "sería", "serán", "será", "cada", "cual", "cuales", "cuyo", "cuya",
)

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
